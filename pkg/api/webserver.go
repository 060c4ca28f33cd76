package api

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/detect"
	"github.com/chenBenjamin97/shot-analyzer/pkg/emitter"
	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/hoop"
	"github.com/chenBenjamin97/shot-analyzer/pkg/session"
	"github.com/chenBenjamin97/shot-analyzer/pkg/stats"
	"github.com/chenBenjamin97/shot-analyzer/pkg/store"
	"github.com/chenBenjamin97/shot-analyzer/pkg/utils"
	"github.com/gin-gonic/gin"
)

//AnalyzeFunc runs a stored video through the session loop until the video ends
type AnalyzeFunc func(ctx context.Context, videoPath string) error

//Server holds what the HTTP handlers need. Store and publisher may be nil, their routes then answer 503.
type Server struct {
	cfg       *config.Config
	loop      *game.Loop
	store     *store.Store
	analyze   AnalyzeFunc
	publisher *emitter.Publisher

	mu        sync.Mutex
	analyzing string //video under analysis, empty when idle
}

func NewServer(cfg *config.Config, loop *game.Loop, st *store.Store, analyze AnalyzeFunc) *Server {
	return &Server{cfg: cfg, loop: loop, store: st, analyze: analyze}
}

//SetPublisher exposes p's counters under /api/mqtt. Call it before SetRouter.
func (s *Server) SetPublisher(p *emitter.Publisher) {
	s.publisher = p
}

type sessionView struct {
	State          *session.State `json:"state"` //null before the first session
	SessionID      string         `json:"sessionId"`
	Hoop           *hoop.Region   `json:"hoop"`
	MetersPerPixel *float64       `json:"metersPerPixel"`
	Analyzing      string         `json:"analyzing,omitempty"`
}

type statsView struct {
	Stats   *stats.PlayerStats `json:"stats"`
	Summary stats.Summary      `json:"summary"`
}

type hoopEdit struct {
	Rect    geometry.Rect  `json:"rect"`
	Contour *geometry.Rect `json:"contour"`
}

type cameraSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) SetRouter() *gin.Engine {
	r := gin.Default()

	apiRoutes := r.Group("/api")

	apiRoutes.GET("/videos", func(ctx *gin.Context) {
		if names, err := utils.ListDir(s.cfg.Directory.Source, s.cfg.Video.ProdFormat); err != nil {
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, names)
		}
	})

	apiRoutes.GET("/play", func(ctx *gin.Context) {
		videoName := ctx.Query("name")
		if videoName == "" {
			ctx.Status(http.StatusNotAcceptable) //missing url parameter
			return
		}

		videoPath := path.Join(s.cfg.Directory.Source, filepath.Base(videoName))
		if _, err := os.Stat(videoPath); err != nil {
			if os.IsNotExist(err) {
				ctx.Status(http.StatusNotFound)
			} else {
				ctx.Status(http.StatusInternalServerError)
			}
			return
		}

		ctx.Header("Content-Type", "video/"+s.cfg.Video.ProdFormat)
		http.ServeFile(ctx.Writer, ctx.Request, videoPath)
	})

	apiRoutes.POST("/upload", s.upload)

	sessionRoutes := apiRoutes.Group("/session")

	sessionRoutes.GET("", func(ctx *gin.Context) {
		var view sessionView
		err := s.loop.Do(ctx.Request.Context(), func(o *game.Orchestrator) error {
			if state, ok := o.State(); ok {
				view.State = &state
			}
			view.SessionID = o.SessionID()
			view.Hoop = o.Hoop()
			if mpp := o.MetersPerPixel(); !math.IsNaN(mpp) {
				view.MetersPerPixel = &mpp
			}
			return nil
		})
		if err != nil {
			s.fail(ctx, "api/session", err)
			return
		}
		view.Analyzing = s.current()
		ctx.JSON(http.StatusOK, view)
	})

	sessionRoutes.GET("/stats", func(ctx *gin.Context) {
		var view statsView
		err := s.loop.Do(ctx.Request.Context(), func(o *game.Orchestrator) error {
			view.Stats = o.Stats()
			return nil
		})
		if err != nil {
			s.fail(ctx, "api/session/stats", err)
			return
		}
		view.Summary = view.Stats.Summary()
		ctx.JSON(http.StatusOK, view)
	})

	sessionRoutes.POST("/start", func(ctx *gin.Context) {
		var size cameraSize
		if ctx.Request.ContentLength > 0 {
			if err := ctx.ShouldBindJSON(&size); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		s.do(ctx, "api/session/start", func(o *game.Orchestrator) error {
			if err := o.Start(); err != nil {
				return err
			}
			return o.CameraReady(size.Width, size.Height)
		})
	})

	sessionRoutes.POST("/frames", func(ctx *gin.Context) {
		var frame detect.FrameEvents
		if err := ctx.ShouldBindJSON(&frame); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.do(ctx, "api/session/frames", func(o *game.Orchestrator) error { return detect.Apply(o, &frame) })
	})

	sessionRoutes.PUT("/hoop", func(ctx *gin.Context) {
		var edit hoopEdit
		if err := ctx.ShouldBindJSON(&edit); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.do(ctx, "api/session/hoop", func(o *game.Orchestrator) error { return o.ManualHoopEdit(edit.Rect, edit.Contour) })
	})

	sessionRoutes.POST("/finish", func(ctx *gin.Context) {
		s.do(ctx, "api/session/finish", func(o *game.Orchestrator) error { return o.Finish() })
	})

	sessionRoutes.POST("/next-round", func(ctx *gin.Context) {
		s.do(ctx, "api/session/next-round", func(o *game.Orchestrator) error { return o.NextRound() })
	})

	sessionRoutes.POST("/reset", func(ctx *gin.Context) {
		s.do(ctx, "api/session/reset", func(o *game.Orchestrator) error {
			o.Reset()
			return nil
		})
	})

	apiRoutes.GET("/sessions", func(ctx *gin.Context) {
		if s.store == nil {
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		if sessions, err := s.store.ListSessions(); err != nil {
			log.Printf("api/sessions: Error, got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, sessions)
		}
	})

	apiRoutes.GET("/sessions/:id/shots", func(ctx *gin.Context) {
		if s.store == nil {
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		if shots, err := s.store.ShotsForSession(ctx.Param("id")); err != nil {
			log.Printf("api/sessions/shots: Error, got '%v'", err)
			ctx.Status(http.StatusInternalServerError)
		} else {
			ctx.JSON(http.StatusOK, shots)
		}
	})

	apiRoutes.GET("/mqtt", func(ctx *gin.Context) {
		if s.publisher == nil {
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		ctx.JSON(http.StatusOK, s.publisher.Stats())
	})

	return r
}

//upload stores the posted video and starts analyzing it. One video is analyzed at a time.
func (s *Server) upload(ctx *gin.Context) {
	file, fHeader, err := ctx.Request.FormFile("video")
	if err != nil {
		ctx.Status(http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(fHeader.Filename)
	if existNames, err := utils.ListDir(s.cfg.Directory.Source, ""); err != nil {
		ctx.Status(http.StatusInternalServerError)
		return
	} else if utils.InSlice(name, existNames) {
		ctx.Status(http.StatusNotAcceptable)
		return
	}

	if !s.claim(name) {
		ctx.JSON(http.StatusConflict, gin.H{"error": "another video is being analyzed", "analyzing": s.current()})
		return
	}

	log.Printf("api/Upload: Received new file: name - '%s', size - %v Bytes", name, fHeader.Size)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		log.Printf("api/Upload: Could not read request's body, got '%v'", err)
		s.release()
		ctx.Status(http.StatusInternalServerError)
		return
	}

	srcFilePath := path.Join(s.cfg.Directory.Source, name)
	if err = os.WriteFile(srcFilePath, fileBytes, 0444); err != nil {
		log.Printf("api/Upload: Could not write '%s' file, got '%v'", srcFilePath, err)
		s.release()
		ctx.Status(http.StatusInternalServerError)
		return
	}

	go func() {
		defer s.release()
		if err := s.analyze(context.Background(), srcFilePath); err != nil {
			log.Printf("api/Upload: Analysis of '%s' failed, got '%v'", srcFilePath, err)
		}
	}()

	ctx.JSON(http.StatusAccepted, gin.H{"name": name})
}

func (s *Server) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analyzing != "" {
		return false
	}
	s.analyzing = name
	return true
}

func (s *Server) release() {
	s.mu.Lock()
	s.analyzing = ""
	s.mu.Unlock()
}

func (s *Server) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzing
}

//do runs fn on the session loop and answers with the resulting state
func (s *Server) do(ctx *gin.Context, route string, fn func(*game.Orchestrator) error) {
	var state session.State
	err := s.loop.Do(ctx.Request.Context(), func(o *game.Orchestrator) error {
		if err := fn(o); err != nil {
			return err
		}
		state, _ = o.State()
		return nil
	})
	if err != nil {
		s.fail(ctx, route, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"state": state})
}

func (s *Server) fail(ctx *gin.Context, route string, err error) {
	log.Printf("%s: Error, got '%v'", route, err)

	switch {
	case errors.Is(err, session.ErrInvalidTransition):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, hoop.ErrDegenerateHoop):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, game.ErrLoopStopped):
		ctx.Status(http.StatusServiceUnavailable)
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
