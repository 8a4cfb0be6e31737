package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strconv"
	"time"

	. "matchbook/internal/common"
	"matchbook/internal/config"
	"matchbook/internal/engine"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Server exposes an engine.Matcher over HTTP.
type Server struct {
	cfg     config.Server
	matcher engine.Matcher
	router  *mux.Router
}

func NewServer(cfg config.Server, matcher engine.Matcher) *Server {
	s := &Server{
		cfg:     cfg,
		matcher: matcher,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/orders", s.handleCreateOrder).Methods(http.MethodPost)
	s.router.HandleFunc("/trades", s.handleGetTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/book", s.handleGetBook).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler is the full middleware chain: CORS, request logging, routing.
func (s *Server) Handler() http.Handler {
	// An empty origin list lets any origin through.
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(requestLogger(s.router))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("unable to start listener: %w", err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("server shutting down")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ==============================
// Handlers
// ==============================

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	logger := requestLog(r)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		respondError(w, http.StatusUnsupportedMediaType, "expected application/json body", "")
		return
	}

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid wait parameter", err.Error())
			return
		}
		wait = parsed
	}

	order, status, err := decodeOrder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn().Err(err).Int("status", status).Msg("order rejected")
		respondError(w, status, "invalid order", err.Error())
		return
	}

	logger.Info().
		Str("side", order.Side.String()).
		Uint64("price", order.Price).
		Uint64("quantity", order.Quantity).
		Bool("wait", wait).
		Msg("order received")

	if !wait {
		if err := s.matcher.Enqueue(r.Context(), order); err != nil {
			logger.Error().Err(err).Msg("unable to queue order")
			respondError(w, http.StatusInternalServerError, "Failed to process order", err.Error())
			return
		}
		respondJSON(w, http.StatusAccepted, StatusResponse{Status: "Order accepted"})
		return
	}

	trades, err := s.matcher.Place(r.Context(), order)
	if err != nil {
		logger.Error().Err(err).Msg("unable to process order")
		respondError(w, http.StatusInternalServerError, "Failed to process order", err.Error())
		return
	}
	if trades == nil {
		trades = []Trade{}
	}
	respondJSON(w, http.StatusOK, PlaceOrderResponse{Status: "Order processed", Trades: trades})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	var response TradesResponse
	err := s.matcher.Read(r.Context(), func(book *engine.OrderBook) {
		response.Total = book.TradeCount()
		response.Trades = book.Trades()
	})
	if err != nil {
		requestLog(r).Error().Err(err).Msg("unable to read trades")
		respondError(w, http.StatusInternalServerError, "Failed to read trades", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	var response BookResponse
	err := s.matcher.Read(r.Context(), func(book *engine.OrderBook) {
		if price, ok := book.BestBid(); ok {
			response.BestBid = &price
		}
		if price, ok := book.BestAsk(); ok {
			response.BestAsk = &price
		}
		response.BidDepth = sideDepth(book, Buy)
		response.AskDepth = sideDepth(book, Sell)
		response.Bids = book.Bids()
		response.Asks = book.Asks()
	})
	if err != nil {
		requestLog(r).Error().Err(err).Msg("unable to read book")
		respondError(w, http.StatusInternalServerError, "Failed to read book", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// ==============================
// Helpers
// ==============================

// decodeOrder reads an order body. The returned status separates bodies that
// are not JSON at all (400) from JSON that does not describe an order (422).
func decodeOrder(body io.Reader) (Order, int, error) {
	var req OrderRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		var (
			typeErr *json.UnmarshalTypeError
			sizeErr *http.MaxBytesError
		)
		switch {
		case errors.As(err, &sizeErr):
			return Order{}, http.StatusRequestEntityTooLarge, err
		case errors.As(err, &typeErr), errors.Is(err, ErrInvalidSide):
			return Order{}, http.StatusUnprocessableEntity, err
		}
		// Syntax errors and empty or truncated bodies.
		return Order{}, http.StatusBadRequest, err
	}
	// Exactly one JSON value; anything after it is a malformed body.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			return Order{}, http.StatusRequestEntityTooLarge, err
		}
		return Order{}, http.StatusBadRequest, errors.New("unexpected data after order")
	}

	switch {
	case req.Side == nil:
		return Order{}, http.StatusUnprocessableEntity, errors.New("missing field `side`")
	case req.Price == nil:
		return Order{}, http.StatusUnprocessableEntity, errors.New("missing field `price`")
	case req.Quantity == nil:
		return Order{}, http.StatusUnprocessableEntity, errors.New("missing field `quantity`")
	}
	return Order{Side: *req.Side, Price: *req.Price, Quantity: *req.Quantity}, 0, nil
}

func sideDepth(book *engine.OrderBook, side Side) SideDepth {
	levels, orders, quantity := book.Depth(side)
	return SideDepth{Levels: levels, Orders: orders, Quantity: quantity}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("unable to write response")
	}
}

func respondError(w http.ResponseWriter, status int, title string, message string) {
	respondJSON(w, status, ErrorResponse{
		Error:   title,
		Message: message,
	})
}
