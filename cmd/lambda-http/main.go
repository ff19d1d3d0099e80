package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"patent-backend/internal/bootstrap"
	"patent-backend/internal/shared/config"
	"patent-backend/internal/shared/server/respond"
	"patent-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp(ctx context.Context) {
	cfg := config.Load()
	telemetry.Init(cfg.Env, cfg.LogLevel)
	app, err := bootstrap.BuildContext(ctx, cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
	telemetry.Info("lambda_http.cold_start", map[string]any{"env": cfg.Env, "database": app.DB != nil})
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda_http.bootstrap_failed", map[string]any{
			"error":      initErr.Error(),
			"request_id": req.RequestContext.RequestID,
		})
		return unavailable(req.RequestContext.RequestID), nil
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

// unavailable renders the standard error body so clients see the same
// shape as any other API failure.
func unavailable(requestID string) events.APIGatewayV2HTTPResponse {
	body, _ := json.Marshal(respond.ErrorResponse{Error: respond.ErrorBody{
		Code:    "service_unavailable",
		Message: "service is starting or misconfigured",
		Details: map[string]string{"requestId": requestID},
	}})
	return events.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Retry-After":  "5",
		},
	}
}

func main() {
	lambda.Start(handler)
}
