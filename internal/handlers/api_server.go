// internal/handlers/api_server.go
package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uconnect/campus/internal/friends"
	"github.com/uconnect/campus/internal/middleware"
	"github.com/uconnect/campus/internal/realtime"
)

// RouterOptions holds what NewRouter needs besides its collaborators.
type RouterOptions struct {
	RequestTimeout time.Duration
	WS             WSOptions
}

// NewRouter registers every HTTP and websocket route on a ServeMux.
func NewRouter(logger *logrus.Logger, svc *friends.Service, registry realtime.Registry, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	api := func(h http.HandlerFunc) http.Handler {
		if opts.RequestTimeout > 0 {
			return middleware.Chain(h, middleware.LogMiddleware(logger), middleware.Timeout(opts.RequestTimeout))
		}
		return middleware.Chain(h, middleware.LogMiddleware(logger))
	}

	mux.Handle("GET /friends", api(ListFriendsHandler(logger, svc)))
	mux.Handle("GET /friends/requests", api(ListFriendRequestsHandler(logger, svc)))
	mux.Handle("POST /friends/request/{id}", api(SendFriendRequestHandler(logger, svc)))
	mux.Handle("POST /friends/accept/{id}", api(AcceptFriendRequestHandler(logger, svc)))
	mux.Handle("POST /friends/reject/{id}", api(RejectFriendRequestHandler(logger, svc)))
	mux.Handle("DELETE /friends/{id}", api(RemoveFriendHandler(logger, svc)))
	mux.Handle("GET /friends/mutual/{id}", api(MutualFriendsHandler(logger, svc)))
	mux.Handle("GET /friends/status/{id}", api(FriendStatusHandler(logger, svc)))
	mux.Handle("GET /users/discover", api(DiscoverPeopleHandler(logger, svc)))

	// long-lived; no request timeout
	mux.Handle("GET /ws", middleware.LogMiddleware(logger)(RealtimeWSHandler(logger, registry, opts.WS)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusOK, "ok")
	})
	return mux
}
