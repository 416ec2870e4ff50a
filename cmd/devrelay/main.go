// devrelay is a stand-in relay backend for local development: seed merged
// message batches over POST /emit, then point the console at it.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS merged (
  uuid TEXT PRIMARY KEY,
  records_json TEXT NOT NULL
);`

type emitReq struct {
	UUID    string            `json:"uuid"`
	Records []json.RawMessage `json:"records"`
}

func main() {
	var (
		addr   string
		sqlite string
	)

	flag.StringVar(&addr, "addr", ":3000", "HTTP listen address")
	flag.StringVar(&sqlite, "db", "devrelay.db", "SQLite database path")
	flag.Parse()

	db, err := sql.Open("sqlite", sqlite)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("apply schema: %v", err)
	}

	log.Printf("devrelay listening on %s (db=%s)", addr, sqlite)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /emit", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req emitReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.UUID == "" {
			http.Error(w, "uuid required", http.StatusBadRequest)
			return
		}
		records, err := json.Marshal(req.Records)
		if err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
			return
		}
		const q = `INSERT INTO merged (uuid, records_json) VALUES (?, ?)
ON CONFLICT(uuid) DO UPDATE SET records_json = excluded.records_json;`
		if _, err := db.Exec(q, req.UUID, string(records)); err != nil {
			http.Error(w, "insert failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "uuid": req.UUID, "count": len(req.Records)})
	})

	mux.HandleFunc("GET /api/messages/merged/{uuid}", func(w http.ResponseWriter, r *http.Request) {
		uuid := r.PathValue("uuid")
		var records string
		err := db.QueryRow(`SELECT records_json FROM merged WHERE uuid = ?;`, uuid).Scan(&records)
		if err == sql.ErrNoRows {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "merged message not found"})
			return
		}
		if err != nil {
			http.Error(w, "query failed: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = io.WriteString(w, records)
	})

	// 1x1 transparent PNG so viewer pages render without a real avatar host.
	mux.HandleFunc("GET /api/avatar/qq/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(blankPNG)
	})

	log.Fatal(http.ListenAndServe(addr, mux))
}

var blankPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}
