package main

import (
	"log"
	"os"

	"paperchat-be/internal/model"
	"paperchat-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDB(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Step 1: Setting up extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	log.Println("Step 2: Running AutoMigrate...")

	models := []interface{}{
		&model.Conversation{},
		&model.Message{},
		&model.MessageRaw{},
		&model.Document{},
		&model.Passage{},
		&model.MessageSource{},
		&model.Citation{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	log.Println("Step 3: Ensuring ANN index on passages.embedding...")

	indexSQL := []string{
		`CREATE INDEX IF NOT EXISTS idx_passages_embedding ON passages
		 USING hnsw (embedding vector_cosine_ops);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_citations_conversation_source
		 ON citations (conversation_id, source_id);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_citations_conversation_position
		 ON citations (conversation_id, position);`,
	}
	for _, sql := range indexSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to create index: %v. Continuing...", err)
		}
	}

	log.Println("Migration complete.")
}
