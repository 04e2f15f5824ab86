package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/todolog/api/handler"
)

type Handlers struct {
	Todo   *apiHandler.TodoHandler
	Health *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Protected routes
	r.GET("/api/v1/todos", authMiddleware(handlers.Todo.ListTodos))
	r.POST("/api/v1/todos", authMiddleware(handlers.Todo.CreateTodo))
	r.GET("/api/v1/todos/{id}", authMiddleware(handlers.Todo.GetTodo))
	r.PUT("/api/v1/todos/{id}", authMiddleware(handlers.Todo.UpdateTodo))
	r.PATCH("/api/v1/todos/{id}/toggle", authMiddleware(handlers.Todo.ToggleTodo))
	r.DELETE("/api/v1/todos/{id}", authMiddleware(handlers.Todo.DeleteTodo))
	r.GET("/api/v1/todos/{id}/history", authMiddleware(handlers.Todo.TodoHistory))
	r.GET("/api/v1/todos/{id}/audit", authMiddleware(handlers.Todo.TodoAudit))

	return r
}
