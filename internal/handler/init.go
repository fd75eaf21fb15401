package handler

import (
	"reels-generator/internal/service"
)

// Dispatcher hands a stored task to whatever executes it: the in-process
// task runner or the redis queue.
type Dispatcher interface {
	Dispatch(taskId string) error
}

type Handler struct {
	Service    *service.Service
	Dispatcher Dispatcher
}

func NewHandler(svc *service.Service, dispatcher Dispatcher) *Handler {
	return &Handler{Service: svc, Dispatcher: dispatcher}
}
