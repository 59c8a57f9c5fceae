package router

import "github.com/gin-gonic/gin"

// Module registers one feature's routes on the /api group.
type Module interface {
	Name() string
	Register(rg *gin.RouterGroup)
}
