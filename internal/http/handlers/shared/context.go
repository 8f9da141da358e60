package shared

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParamUint 读取路径中的正整数 ID，非法时直接写入 400 响应。
func ParamUint(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondBadRequest(c, nil)
		return 0, false
	}
	return uint(id), true
}
