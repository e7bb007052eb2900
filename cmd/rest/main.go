package main

import (
	"context"
	"log"

	"paperchat-be/internal/bootstrap"
	"paperchat-be/internal/config"
	"paperchat-be/internal/server"
	"paperchat-be/internal/tracer"
	"paperchat-be/pkg/database"
)

func main() {
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	cfg := config.Load()

	gormDB, err := database.NewGormDB(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	container := bootstrap.NewContainer(gormDB, cfg)

	go func() {
		log.Println("Background: starting consumer service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background consumer error: %v", err)
		}
	}()

	srv := server.New(cfg, container)

	log.Fatal(srv.Run())
}
