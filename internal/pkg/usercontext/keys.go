package usercontext

// KeyUserContext is the Locals key shared by the auth middleware and controllers
const KeyUserContext = "USER_CONTEXT"
