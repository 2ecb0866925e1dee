package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/config"
	"github.com/camden-git/picturebank/database"
	"github.com/camden-git/picturebank/handlers"
	"github.com/camden-git/picturebank/media"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.BankRoot, cfg.IndexPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}

	transformer := media.NewImagingTransformer()

	log.Printf("Initializing worker pools (identify: %d, transform: %d, queue: %d)...",
		cfg.NumIdentifyWorkers, cfg.NumTransformWorkers, cfg.TransformQueueSize)

	pictureBank, err := bank.Open(cfg, db, transformer)
	if err != nil {
		log.Fatalf("FATAL: Failed to open picture bank: %v", err)
	}

	log.Printf("Bank root: %s", cfg.BankRoot)
	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Search index path: %s", cfg.IndexPath)
	log.Printf("Thumbnail max size (longest side): %dpx", cfg.ThumbnailMaxSize)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	pictureHandler := &handlers.PictureHandler{Bank: pictureBank}
	tagHandler := &handlers.TagHandler{Bank: pictureBank}
	browserHandler := handlers.NewBrowserHandler(pictureBank)

	r.Route("/api", func(r chi.Router) {
		r.Route("/pictures", func(r chi.Router) {
			r.Post("/", pictureHandler.AddPicture)
			r.Post("/import", pictureHandler.ImportDirectory)
			r.Post("/check", pictureHandler.CheckBank)
			r.Route("/{picture_id}", func(r chi.Router) {
				r.Get("/", pictureHandler.GetPicture)
				r.Put("/", pictureHandler.UpdatePicture)
				r.Delete("/", pictureHandler.DeletePicture)
				r.Post("/reindex", pictureHandler.ReindexPicture)
				r.Get("/file", handlers.AssetServer(pictureBank, media.TreePictures))
				r.Get("/display", handlers.AssetServer(pictureBank, media.TreeDisplay))
				r.Get("/thumbnail", handlers.AssetServer(pictureBank, media.TreeThumbnails))
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Post("/", tagHandler.CreateTag)
			r.Get("/", tagHandler.ListTags)
			r.Get("/recent", tagHandler.RecentTags)
			r.Route("/{tag_id}", func(r chi.Router) {
				r.Get("/", tagHandler.GetTag)
				r.Put("/", tagHandler.UpdateTag)
				r.Delete("/", tagHandler.DeleteTag)
				r.Get("/children", tagHandler.TagChildren)
			})
		})

		r.Route("/browsers", func(r chi.Router) {
			r.Post("/", browserHandler.CreateBrowser)
			r.Route("/{browser_id}", func(r chi.Router) {
				r.Get("/", browserHandler.GetBrowser)
				r.Post("/next", browserHandler.Next)
				r.Post("/previous", browserHandler.Previous)
				r.Get("/pictures", browserHandler.Pictures)
				r.Delete("/", browserHandler.CloseBrowser)
			})
		})
	})

	serverAddr := ":" + cfg.Port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Server error: %v", err)
		}
	}()

	// a clean shutdown flushes every pending write-back before exit
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Printf("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := pictureBank.Close(); err != nil {
		log.Printf("Bank close error: %v", err)
	}
}
