package server

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"

	"github.com/meikanc/mpesa-backend/internal/conf"
	apperrors "github.com/meikanc/mpesa-backend/internal/errors"
	"github.com/meikanc/mpesa-backend/internal/service"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Bootstrap, checkout *service.CheckoutService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server.Http.Addr != "" {
		opts = append(opts, http.Address(c.Server.Http.Addr))
	}
	if timeout := conf.Duration(c.Server.Http.Timeout, 0); timeout > 0 {
		opts = append(opts, http.Timeout(timeout))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, checkout)

	srv.Route("/").GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, map[string]string{"status": "ok", "service": "mpesa-backend"})
	})

	return srv
}

func registerRoutes(srv *http.Server, checkout *service.CheckoutService) {
	r := srv.Route("/api")

	r.POST("/orders", func(ctx http.Context) error {
		var req service.PlaceOrderRequest
		if err := ctx.Bind(&req); err != nil {
			return apperrors.Validation("invalid request body")
		}
		reply, err := checkout.PlaceOrder(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/orders/{id}/stkpush", func(ctx http.Context) error {
		orderID, err := orderIDVar(ctx)
		if err != nil {
			return err
		}
		reply, err := checkout.InitiateStkPush(ctx, orderID)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/orders/{id}", func(ctx http.Context) error {
		orderID, err := orderIDVar(ctx)
		if err != nil {
			return err
		}
		view, err := checkout.GetOrderStatus(ctx, orderID)
		if err != nil {
			return err
		}
		return ctx.Result(200, view)
	})

	// The provider only needs delivery confirmation: the handler returns an
	// error solely for undecodable payloads; parsed callbacks are always
	// acknowledged with ResultCode 0.
	r.POST("/mpesa/callback", func(ctx http.Context) error {
		var env service.StkCallbackEnvelope
		if err := ctx.Bind(&env); err != nil {
			return apperrors.Validation("invalid callback body")
		}
		ack, err := checkout.HandleCallback(ctx, &env)
		if err != nil {
			return err
		}
		return ctx.Result(200, ack)
	})
}

func orderIDVar(ctx http.Context) (uint64, error) {
	raw := ctx.Vars().Get("id")
	orderID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || orderID == 0 {
		return 0, apperrors.Validation("invalid order id %q", raw)
	}
	return orderID, nil
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"success": false,
		"code":    status,
		"message": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["message"] = se.Message
	} else if err != nil {
		response["message"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
