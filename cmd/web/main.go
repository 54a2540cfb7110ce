package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"quizhub/internal/app"
	"quizhub/internal/db"
)

func main() {
	cfg := app.LoadConfig()

	poolCfg := db.DefaultPoolConfig()
	poolCfg.MaxOpenConns = cfg.DBMaxOpenConns
	poolCfg.MaxIdleConns = cfg.DBMaxIdleConns
	poolCfg.ConnMaxLifetime = time.Duration(cfg.DBConnMaxLifeMins) * time.Minute

	dbConn, err := db.OpenWithConfig(context.Background(), cfg.DBDSN, poolCfg)
	if err != nil {
		log.Printf("database error: %v", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	r := app.NewRouter(cfg, dbConn)

	log.Printf("quizhub listening on %s", cfg.HTTPAddr)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}
