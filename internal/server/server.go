// Package server is the HTTP boundary: quiz upload, image retrieval,
// the websocket endpoint and the embedded frontend assets.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jacobtread/Quizler/internal/games"
	"github.com/jacobtread/Quizler/internal/logging"
	"github.com/jacobtread/Quizler/internal/session"
	"github.com/jacobtread/Quizler/internal/types"
)

// maxPartSize caps each uploaded multipart part (the config JSON and
// every image) at 15MB
const maxPartSize int64 = 15 * 1024 * 1024

type Server struct {
	router   *gin.Engine
	registry *games.Registry
	httpSrv  *http.Server
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The frontend is served from this same process; other origins
		// are quiz creators embedding the join page
		return true
	},
	EnableCompression: true,
}

// NewServer creates the HTTP server routing against the provided game
// registry
func NewServer(registry *games.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware())
	router.Use(RecoveryMiddleware())

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, HEAD")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	server := &Server{
		router:   router,
		registry: registry,
	}

	// Setup routes
	router.POST("/api/quiz", server.createQuiz)
	router.GET("/api/quiz/socket", server.handleSocket)
	router.GET("/api/quiz/:token/:image", server.quizImage)

	// Everything else falls through to the embedded frontend
	router.NoRoute(server.serveAsset)

	return server
}

// createQuiz accepts a multipart quiz upload. The "config" part holds
// the quiz JSON; every other part is an image keyed by the UUID the
// questions reference, with its mime taken from the part content type.
func (s *Server) createQuiz(c *gin.Context) {
	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.String(http.StatusBadRequest, "Expected multipart quiz upload")
		return
	}

	var config *types.GameConfig
	images := make(map[types.ImageRef]types.Image)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			c.String(http.StatusBadRequest, "Malformed multipart body")
			return
		}

		data, err := io.ReadAll(io.LimitReader(part, maxPartSize+1))
		if err != nil {
			c.String(http.StatusBadRequest, "Failed to read upload part")
			return
		}
		if int64(len(data)) > maxPartSize {
			c.String(http.StatusBadRequest, "Upload part too large")
			return
		}

		name := part.FormName()
		if name == "config" {
			config = &types.GameConfig{}
			if err := json.Unmarshal(data, config); err != nil {
				c.String(http.StatusBadRequest, "Invalid quiz config")
				return
			}
			continue
		}

		// Image parts are named by the UUID the questions refer to
		ref, err := uuid.Parse(name)
		if err != nil {
			c.String(http.StatusBadRequest, "Image parts must be named by UUID")
			return
		}
		mime := part.Header.Get("Content-Type")
		if mime == "" {
			c.String(http.StatusBadRequest, "Image parts require a content type")
			return
		}
		images[ref] = types.Image{Mime: mime, Data: data}
	}

	if config == nil {
		c.String(http.StatusBadRequest, "Missing quiz config")
		return
	}
	config.Images = images

	if err := config.Validate(); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	id := s.registry.Prepare(config)
	c.JSON(http.StatusCreated, gin.H{"uuid": id})
}

// quizImage serves an uploaded image from a live game
func (s *Server) quizImage(c *gin.Context) {
	token, err := types.ParseToken(c.Param("token"))
	if err != nil {
		c.String(http.StatusBadRequest, "Unknown game token")
		return
	}

	game, ok := s.registry.GetGame(token)
	if !ok {
		c.String(http.StatusBadRequest, "Unknown game token")
		return
	}

	ref, err := uuid.Parse(c.Param("image"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid image reference")
		return
	}

	image, ok := game.GetImage(ref)
	if !ok {
		c.String(http.StatusBadRequest, "Unknown image")
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000")
	c.Data(http.StatusOK, image.Mime, image.Data)
}

// handleSocket upgrades the connection and hands it off to a session
func (s *Server) handleSocket(c *gin.Context) {
	socket, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error("Failed to upgrade connection", map[string]interface{}{
			"error": err,
		})
		return
	}
	session.Spawn(socket, s.registry)
}

// Run serves until the listener fails or Shutdown is called
func (s *Server) Run(addr string) error {
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}
