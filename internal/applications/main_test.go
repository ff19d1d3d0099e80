package applications

import (
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"patent-backend/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	telemetry.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}
