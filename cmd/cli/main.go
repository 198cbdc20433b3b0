package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bookhub/pkg/models"
)

const defaultBaseURL = "http://localhost:8080"

type tokenData struct {
	Token string `json:"token"`
}

type authResponse struct {
	Token string `json:"token"`
}

type bookListResponse struct {
	Books       []models.Book `json:"books"`
	TotalPages  int           `json:"total_pages"`
	CurrentPage int           `json:"current_page"`
}

func main() {
	global := flag.NewFlagSet("bookhub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	if len(args) > 1 {
		sub = args[1]
	}

	client := &http.Client{Timeout: 15 * time.Second}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "books":
		handleBooks(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "reviews":
		handleReviews(ctx, client, *baseURL, *tokenPath, sub, args[2:])
	case "feed":
		handleFeed(*baseURL, sub, args[2:])
	case "export":
		handleExport(ctx, client, *baseURL, sub, args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}

		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ logged in")
	case "signup":
		fs := flag.NewFlagSet("auth signup", flag.ExitOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *name == "" || *email == "" || *password == "" {
			log.Fatal("name, email, and password are required")
		}

		payload := map[string]string{"name": *name, "email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/signup", "", payload, &resp); err != nil {
			log.Fatalf("signup failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("✅ signed up and logged in")
	case "logout":
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("✅ logged out")
	default:
		log.Fatal("usage: bookhub auth <login|signup|logout>")
	}
}

func handleBooks(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "list":
		fs := flag.NewFlagSet("books list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/books")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		qv.Set("page", fmt.Sprintf("%d", *page))
		u.RawQuery = qv.Encode()

		var resp bookListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			log.Fatalf("list failed: %v", err)
		}
		printJSON(resp)
	case "show":
		fs := flag.NewFlagSet("books show", flag.ExitOnError)
		id := fs.String("id", "", "book id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("book id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodGet, baseURL+"/books/"+url.PathEscape(*id), "", nil, &resp); err != nil {
			log.Fatalf("show failed: %v", err)
		}
		printJSON(resp)
	case "add":
		fs := flag.NewFlagSet("books add", flag.ExitOnError)
		title := fs.String("title", "", "title")
		author := fs.String("author", "", "author")
		description := fs.String("description", "", "description")
		genre := fs.String("genre", "", "genre")
		year := fs.Int("year", 0, "publication year")
		_ = fs.Parse(args)
		if *title == "" || *author == "" || *description == "" || *genre == "" || *year <= 0 {
			log.Fatal("title, author, description, genre, and year are required")
		}

		token := mustToken(tokenPath)
		payload := map[string]any{
			"title":       *title,
			"author":      *author,
			"description": *description,
			"genre":       *genre,
			"year":        *year,
		}
		var resp models.Book
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/books", token, payload, &resp); err != nil {
			log.Fatalf("add failed: %v", err)
		}
		printJSON(resp)
	case "update":
		fs := flag.NewFlagSet("books update", flag.ExitOnError)
		id := fs.String("id", "", "book id")
		title := fs.String("title", "", "title")
		author := fs.String("author", "", "author")
		description := fs.String("description", "", "description")
		genre := fs.String("genre", "", "genre")
		year := fs.Int("year", 0, "publication year")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("book id is required")
		}

		// only send the fields that were set; the server merges
		payload := map[string]any{}
		if *title != "" {
			payload["title"] = *title
		}
		if *author != "" {
			payload["author"] = *author
		}
		if *description != "" {
			payload["description"] = *description
		}
		if *genre != "" {
			payload["genre"] = *genre
		}
		if *year > 0 {
			payload["year"] = *year
		}
		if len(payload) == 0 {
			log.Fatal("nothing to update")
		}

		token := mustToken(tokenPath)
		var resp models.Book
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/books/"+url.PathEscape(*id), token, payload, &resp); err != nil {
			log.Fatalf("update failed: %v", err)
		}
		printJSON(resp)
	case "delete":
		fs := flag.NewFlagSet("books delete", flag.ExitOnError)
		id := fs.String("id", "", "book id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("book id is required")
		}

		token := mustToken(tokenPath)
		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, baseURL+"/books/"+url.PathEscape(*id), token, nil, &resp); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: bookhub books <list|show|add|update|delete>")
	}
}

func handleReviews(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	token := mustToken(tokenPath)
	switch sub {
	case "add":
		fs := flag.NewFlagSet("reviews add", flag.ExitOnError)
		bookID := fs.String("book-id", "", "book id")
		rating := fs.Int("rating", 0, "rating 1-5")
		text := fs.String("text", "", "review text")
		_ = fs.Parse(args)
		if *bookID == "" {
			log.Fatal("book-id is required")
		}
		if *rating < 1 || *rating > 5 {
			log.Fatal("rating must be between 1 and 5")
		}

		payload := map[string]any{
			"book_id": *bookID,
			"rating":  *rating,
			"text":    *text,
		}
		var resp models.Review
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/reviews", token, payload, &resp); err != nil {
			log.Fatalf("add failed: %v", err)
		}
		printJSON(resp)
	case "update":
		fs := flag.NewFlagSet("reviews update", flag.ExitOnError)
		id := fs.String("id", "", "review id")
		rating := fs.Int("rating", 0, "rating 1-5")
		text := fs.String("text", "", "review text")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("review id is required")
		}

		payload := map[string]any{}
		if *rating > 0 {
			payload["rating"] = *rating
		}
		if *text != "" {
			payload["text"] = *text
		}
		if len(payload) == 0 {
			log.Fatal("nothing to update")
		}

		var resp models.Review
		if err := doJSON(ctx, client, http.MethodPut, baseURL+"/reviews/"+url.PathEscape(*id), token, payload, &resp); err != nil {
			log.Fatalf("update failed: %v", err)
		}
		printJSON(resp)
	case "delete":
		fs := flag.NewFlagSet("reviews delete", flag.ExitOnError)
		id := fs.String("id", "", "review id")
		_ = fs.Parse(args)
		if *id == "" {
			log.Fatal("review id is required")
		}

		var resp map[string]any
		if err := doJSON(ctx, client, http.MethodDelete, baseURL+"/reviews/"+url.PathEscape(*id), token, nil, &resp); err != nil {
			log.Fatalf("delete failed: %v", err)
		}
		printJSON(resp)
	default:
		log.Fatal("usage: bookhub reviews <add|update|delete>")
	}
}

func handleFeed(baseURL, sub string, args []string) {
	switch sub {
	case "listen":
		fs := flag.NewFlagSet("feed listen", flag.ExitOnError)
		wsURL := fs.String("ws", "", "WebSocket URL (defaults to /ws on API host)")
		_ = fs.Parse(args)

		endpoint := *wsURL
		if endpoint == "" {
			var err error
			endpoint, err = websocketURL(baseURL, "/ws")
			if err != nil {
				log.Fatalf("ws url: %v", err)
			}
		}
		if err := runWebSocket(endpoint); err != nil {
			log.Fatalf("listen failed: %v", err)
		}
	default:
		log.Fatal("usage: bookhub feed listen")
	}
}

func handleExport(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "json":
		fs := flag.NewFlagSet("export json", flag.ExitOnError)
		out := fs.String("out", "data/books.json", "output JSON path")
		_ = fs.Parse(args)

		items, err := fetchBooks(ctx, client, baseURL)
		if err != nil {
			log.Fatalf("export json failed: %v", err)
		}
		if err := writeJSON(*out, items); err != nil {
			log.Fatalf("write json failed: %v", err)
		}
		log.Printf("✅ exported %d books to %s", len(items), *out)
	case "csv":
		fs := flag.NewFlagSet("export csv", flag.ExitOnError)
		out := fs.String("out", "data/books.csv", "output CSV path")
		_ = fs.Parse(args)

		items, err := fetchBooks(ctx, client, baseURL)
		if err != nil {
			log.Fatalf("export csv failed: %v", err)
		}
		if err := writeCSV(*out, items); err != nil {
			log.Fatalf("write csv failed: %v", err)
		}
		log.Printf("✅ exported %d books to %s", len(items), *out)
	default:
		log.Fatal("usage: bookhub export <json|csv>")
	}
}

func runWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[feed] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Println(string(msg))
	}
}

// fetchBooks walks the paged list endpoint until the last page.
func fetchBooks(ctx context.Context, client *http.Client, baseURL string) ([]models.Book, error) {
	var out []models.Book
	page := 1
	for {
		u, err := url.Parse(baseURL + "/books")
		if err != nil {
			return nil, err
		}
		qv := u.Query()
		qv.Set("page", fmt.Sprintf("%d", page))
		u.RawQuery = qv.Encode()

		var resp bookListResponse
		if err := doJSON(ctx, client, http.MethodGet, u.String(), "", nil, &resp); err != nil {
			return nil, err
		}
		out = append(out, resp.Books...)
		if page >= resp.TotalPages || len(resp.Books) == 0 {
			break
		}
		page++
	}
	return out, nil
}

func writeJSON(path string, items []models.Book) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func writeCSV(path string, items []models.Book) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"id", "title", "author", "description", "genre", "year", "owner_id", "created_at",
	}); err != nil {
		return err
	}
	for _, item := range items {
		if err := writer.Write([]string{
			item.ID,
			item.Title,
			item.Author,
			item.Description,
			item.Genre,
			fmt.Sprintf("%d", item.Year),
			item.OwnerID,
			item.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func doJSON(ctx context.Context, client *http.Client, method, endpoint, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s failed: %s", method, endpoint, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	return nil
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("json: %v", err)
	}
	fmt.Println(string(b))
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.bookhub-token.json"
	}
	return filepath.Join(home, ".bookhub", "token.json")
}

func saveToken(path, token string) error {
	if token == "" {
		return errors.New("empty token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenData{Token: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func readToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var td tokenData
	if err := json.Unmarshal(data, &td); err != nil {
		return "", err
	}
	return strings.TrimSpace(td.Token), nil
}

func mustToken(path string) string {
	token, err := readToken(path)
	if err != nil {
		log.Fatalf("token not found, please login: %v", err)
	}
	if token == "" {
		log.Fatal("token empty, please login")
	}
	return token
}

func clearToken(path string) error {
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   path,
	}).String(), nil
}

func printUsage() {
	fmt.Println("bookhub <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|signup|logout")
	fmt.Println("  books list|show|add|update|delete")
	fmt.Println("  reviews add|update|delete")
	fmt.Println("  feed listen")
	fmt.Println("  export json|csv")
}
