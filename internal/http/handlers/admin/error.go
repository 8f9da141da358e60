package admin

import (
	handlershared "github.com/couponflow/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, err error) {
	handlershared.RespondError(c, err)
}

func respondBadRequest(c *gin.Context, err error) {
	handlershared.RespondBadRequest(c, err)
}

func paramID(c *gin.Context, name string) (uint, bool) {
	return handlershared.ParamUint(c, name)
}
