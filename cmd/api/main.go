package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/config"
	"rollcall/internal/faculty"
	"rollcall/internal/geofence"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/metrics"
	"rollcall/internal/session"
	"rollcall/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	statusCache := session.NewStatusCache(redisClient.Client, cfg.StatusCacheTTL)
	registry := session.NewRegistry(session.NewPGStore(db.Client), statusCache, cfg.MaxActiveSessions, time.Now)

	attStore := attendance.NewPGStore(db.Client)
	engine := attendance.NewEngine(registry, attStore, attStore,
		geofence.New(cfg.Zones), cfg.Location(), time.Now, uuid.NewString)

	facultyRepo := faculty.NewPGRepo(db.Client)
	facultySvc := faculty.NewService(facultyRepo, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.TokenTTL, time.Now)

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisLimiter(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		redisHealthy := redisClient.Healthy(c.Request.Context())
		status := http.StatusOK
		if !dbHealthy || !redisHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbHealthy, "redis": redisHealthy})
	})

	// Student-facing attendance submission.
	r.POST("/api/attendance", func(c *gin.Context) {
		var req struct {
			Email     string   `json:"email" binding:"required,email"`
			Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
			Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
			Elevation *float64 `json:"elevation"`
			DeviceID  string   `json:"deviceId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
			return
		}

		decision, err := engine.Submit(c.Request.Context(), attendance.Submission{
			Email:     req.Email,
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Elevation: req.Elevation,
			DeviceID:  req.DeviceID,
		})
		if err != nil {
			log.Printf("attendance submission failed: %v", err)
			metrics.Submissions.WithLabelValues("STORE_ERROR").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "A server error occurred."})
			return
		}
		metrics.Submissions.WithLabelValues(string(decision.Code)).Inc()
		c.JSON(decision.Code.HTTPStatus(), gin.H{
			"success": decision.Success(),
			"message": decision.Message,
			"code":    decision.Code,
		})
	})

	// Public poll endpoint for the student page; served through the redis cache.
	r.GET("/api/session-status", func(c *gin.Context) {
		sessions, err := registry.Status(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"active": false, "message": "Error checking session status"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"active": len(sessions) > 0, "sessions": sessions})
	})

	r.POST("/api/faculty/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data."})
			return
		}
		token, err := facultySvc.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, faculty.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid credentials."})
				return
			}
			log.Printf("login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Server error during authentication."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "message": "Login successful"})
	})

	authGroup := r.Group("/api/faculty", auth.FacultyAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.GET("/sessions", func(c *gin.Context) {
		sessions, err := registry.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch sessions."})
			return
		}
		c.JSON(http.StatusOK, sessions)
	})

	authGroup.GET("/sessions/active", func(c *gin.Context) {
		sessions, err := registry.Active(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch active sessions."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	})

	authGroup.POST("/sessions", func(c *gin.Context) {
		var req struct {
			SessionName string `json:"session_name" binding:"required"`
			RoomNumber  string `json:"room_number" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
			return
		}
		created, err := registry.Start(c.Request.Context(), req.SessionName, req.RoomNumber, auth.Username(c))
		if err != nil {
			switch {
			case errors.Is(err, session.ErrInvalid):
				metrics.SessionStarts.WithLabelValues("invalid").Inc()
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid input data"})
			case errors.Is(err, session.ErrConflict):
				metrics.SessionStarts.WithLabelValues("conflict").Inc()
				c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
			default:
				log.Printf("start session failed: %v", err)
				metrics.SessionStarts.WithLabelValues("error").Inc()
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to start session."})
			}
			return
		}
		metrics.SessionStarts.WithLabelValues("ok").Inc()
		c.JSON(http.StatusCreated, gin.H{
			"success":    true,
			"message":    "Attendance session started successfully!",
			"session_id": created.ID,
		})
	})

	authGroup.PUT("/sessions/end-all", func(c *gin.Context) {
		n, err := registry.EndAll(c.Request.Context())
		if err != nil {
			log.Printf("end all sessions failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to end sessions."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "ended": n, "message": "All active sessions ended."})
	})

	authGroup.PUT("/sessions/:id/end", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid session id"})
			return
		}
		if err := registry.End(c.Request.Context(), id); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Session not found or already ended."})
				return
			}
			log.Printf("end session %d failed: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to end session."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session ended successfully!"})
	})

	authGroup.GET("/students", func(c *gin.Context) {
		students, err := facultyRepo.Students(c.Request.Context(), c.Query("room_number"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch students."})
			return
		}
		c.JSON(http.StatusOK, students)
	})

	authGroup.GET("/rooms", func(c *gin.Context) {
		rooms, err := facultyRepo.Rooms(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch rooms."})
			return
		}
		c.JSON(http.StatusOK, rooms)
	})

	authGroup.GET("/attendance-summary", func(c *gin.Context) {
		summary, err := facultyRepo.Summary(c.Request.Context(), c.Query("room_number"), c.Query("date"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate attendance summary."})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
