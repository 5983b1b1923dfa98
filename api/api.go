package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kshivamiitk/classboard/api/rest"
	"github.com/kshivamiitk/classboard/api/ws"
	"github.com/kshivamiitk/classboard/cache"
	"github.com/kshivamiitk/classboard/mq"
	"github.com/kshivamiitk/classboard/service"
	"github.com/kshivamiitk/classboard/store"
	"github.com/kshivamiitk/classboard/worker"
)

type ClassboardAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewClassboardAPI(
	classStore store.ClassStore,
	clearStrokesQueue mq.MessageQueue,
	classCache cache.ClassCache,
	uploadDir string,
	shutdownCtx context.Context,
) *ClassboardAPI {
	wsHub := ws.NewHub(classCache)
	go wsHub.Run()

	counterBatcher := worker.NewCounterBatcher(classStore, 60000)
	go counterBatcher.Run(shutdownCtx)

	strokeBatcher := worker.NewStrokeBatcher(classStore, 500, counterBatcher)
	go strokeBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(clearStrokesQueue, classStore, classCache, counterBatcher)
	go mqConsumer.Run(shutdownCtx)

	svc := service.NewService(
		classStore,
		classCache,
		clearStrokesQueue,
		strokeBatcher,
		counterBatcher,
	)

	return &ClassboardAPI{
		restHandler: rest.NewHandler(svc, uploadDir),
		wsHandler:   ws.NewHandler(svc, wsHub),
		shutdownCtx: shutdownCtx,
	}
}

func (classboardAPI *ClassboardAPI) RegisterRoutes(router chi.Router, requiredOrigin string) {
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Post("/upload", classboardAPI.restHandler.HandleUpload)
	router.Get("/files/{filename}", classboardAPI.restHandler.HandleFile)

	wsUpgrader := classboardAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		classboardAPI.wsHandler.ServeWS(wsUpgrader, w, r, classboardAPI.shutdownCtx)
	})
}
