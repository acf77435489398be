/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, validating
the caller's identity token, upgrading the HTTP connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/pkg/auth/jwt"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The connection carries no room binding; rooms are joined and left through events on
// the established socket.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			logx.Warn("WebSocket connection rejected: Missing or invalid token")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		connID := randx.ConnectionID()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(connID, payload.Username, conn, deps.Hub, deps.Gateway)
		deps.Hub.Register(client)

		go client.WritePump()

		logx.Info("WebSocket connection established",
			"conn_id", connID,
			"username", payload.Username,
		)

		client.ReadPump(context.Background())
	}
}
