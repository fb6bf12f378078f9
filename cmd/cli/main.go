package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/gatehouse/internal/domain"
	"github.com/yourorg/gatehouse/internal/repository"
	"github.com/yourorg/gatehouse/internal/vault"
	"github.com/yourorg/gatehouse/pkg/config"
	"github.com/yourorg/gatehouse/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "login":
		login(args)
	case "logout":
		logout()
	case "who":
		whoAmI()
	case "bootstrap":
		bootstrapAdmin(args)
	case "personnel":
		handlePersonnel(args)
	case "visitor":
		handleVisitor(args)
	case "onsite":
		onSite()
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`gatehouse - site entry control administration

Usage:
  gatehouse login -email <email> -password <password>
  gatehouse logout
  gatehouse who
  gatehouse bootstrap -email <email> -password <password> [-first <name>] [-last <name>] [-national-id <id>]
  gatehouse personnel <add|list|set-code|deactivate>
  gatehouse visitor <list|profile>
  gatehouse onsite

Environment:
  GATEHOUSE_API_URL   API base URL (default http://localhost:8080)

bootstrap creates the first admin account directly against the database
and needs the server's DB_* and VAULT_MASTER_KEY environment.`)
}

// bootstrapAdmin creates the first admin straight in the database. Every
// later officer is created through the API by an admin; this command only
// exists to break that circle on a fresh install.
func bootstrapAdmin(args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "admin password")
	first := fs.String("first", "Site", "first name")
	last := fs.String("last", "Admin", "last name")
	nationalID := fs.String("national-id", "", "admin national ID")
	secretCode := fs.String("secret-code", "", "gate PIN (optional)")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if len(*password) < 8 {
		fmt.Println("Error: password must be at least 8 characters")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	v, err := vault.New(cfg.VaultMasterKey)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool.GetDB()); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	passwordHash, err := v.HashSecret(*password)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	encryptedNID := ""
	if *nationalID != "" {
		encryptedNID, err = v.Encrypt(*nationalID)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	secretCodeHash := ""
	if *secretCode != "" {
		secretCodeHash, err = v.HashSecret(*secretCode)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	admin := &domain.Person{
		ID:                  uuid.NewString(),
		FirstName:           *first,
		LastName:            *last,
		Email:               *email,
		Role:                domain.RoleAdmin,
		NationalIDEncrypted: encryptedNID,
		PasswordHash:        passwordHash,
		SecretCodeHash:      secretCodeHash,
		IsActive:            true,
	}

	repo := repository.NewPostgresPersonnelRepository(pool.GetDB(), nil)
	if err := repo.Create(ctx, admin); err != nil {
		fmt.Printf("✗ Bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Admin created: %s (%s)\n", *email, admin.ID)
}

func login(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "officer email")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/api/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
		fmt.Printf("✓ Logged in as %s\n", *email)
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logout() {
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	token := loadToken()
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	display := token
	if len(display) > 20 {
		display = display[:20]
	}
	fmt.Printf("✓ Logged in (token: %s...)\n", display)
}

func handlePersonnel(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: gatehouse personnel <add|list|set-code|deactivate>")
		return
	}

	switch args[0] {
	case "add":
		addPersonnel(args[1:])
	case "list":
		listPersonnel(args[1:])
	case "set-code":
		setSecretCode(args[1:])
	case "deactivate":
		deactivatePersonnel(args[1:])
	default:
		fmt.Printf("unknown personnel command: %s\n", args[0])
	}
}

func addPersonnel(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone number")
	nationalID := fs.String("national-id", "", "national ID")
	role := fs.String("role", "security", "role: security or admin")
	password := fs.String("password", "", "login password")
	secretCode := fs.String("secret-code", "", "gate PIN (optional)")
	fs.Parse(args)

	payload := map[string]string{
		"firstName":   *first,
		"lastName":    *last,
		"email":       *email,
		"phoneNumber": *phone,
		"nationalId":  *nationalID,
		"role":        *role,
		"password":    *password,
		"secretCode":  *secretCode,
	}
	data, _ := json.Marshal(payload)

	resp, err := apiRequest("POST", "/api/personnel", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ Officer created: %s (%v)\n", *email, result["id"])
	} else {
		fmt.Printf("✗ Create failed: %v\n", result)
	}
}

func listPersonnel(args []string) {
	resp, err := apiRequest("GET", "/api/personnel", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Personnel []domain.Person `json:"personnel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || resp.StatusCode != 200 {
		fmt.Printf("✗ List failed (status %d)\n", resp.StatusCode)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
	for _, p := range result.Personnel {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%t\n", p.ID, p.FirstName, p.LastName, p.Email, p.Role, p.IsActive)
	}
	w.Flush()
}

func setSecretCode(args []string) {
	fs := flag.NewFlagSet("set-code", flag.ExitOnError)
	id := fs.String("id", "", "officer ID")
	code := fs.String("code", "", "new gate PIN")
	fs.Parse(args)

	if *id == "" || *code == "" {
		fmt.Println("Error: id and code are required")
		return
	}

	data, _ := json.Marshal(map[string]string{"secretCode": *code})
	resp, err := apiRequest("PUT", "/api/personnel/"+*id+"/secret-code", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		fmt.Println("✓ Secret code updated")
	} else {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Update failed: %v\n", result)
	}
}

func deactivatePersonnel(args []string) {
	fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
	id := fs.String("id", "", "officer ID")
	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: id is required")
		return
	}

	resp, err := apiRequest("DELETE", "/api/personnel/"+*id, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == 200 {
		fmt.Println("✓ Officer deactivated")
	} else {
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("✗ Deactivate failed: %v\n", result)
	}
}

func handleVisitor(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: gatehouse visitor <list|profile>")
		return
	}

	switch args[0] {
	case "list":
		listVisitors()
	case "profile":
		visitorProfile(args[1:])
	default:
		fmt.Printf("unknown visitor command: %s\n", args[0])
	}
}

func listVisitors() {
	resp, err := apiRequest("GET", "/api/visitors", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Visitors []domain.Visitor `json:"visitors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || resp.StatusCode != 200 {
		fmt.Printf("✗ List failed (status %d)\n", resp.StatusCode)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tBANNED")
	for _, v := range result.Visitors {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%t\n", v.ID, v.FirstName, v.LastName, v.PhoneNumber, v.IsBanned)
	}
	w.Flush()
}

func visitorProfile(args []string) {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	id := fs.String("id", "", "visitor ID")
	fs.Parse(args)

	if *id == "" {
		fmt.Println("Error: id is required")
		return
	}

	resp, err := apiRequest("GET", "/api/visitors/"+*id, nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var pretty bytes.Buffer
	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		fmt.Printf("✗ Profile failed (status %d)\n", resp.StatusCode)
		return
	}
	json.Indent(&pretty, raw, "", "  ")
	fmt.Println(pretty.String())
}

func onSite() {
	resp, err := apiRequest("GET", "/api/onsite", nil)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || resp.StatusCode != 200 {
		fmt.Printf("✗ Query failed (status %d)\n", resp.StatusCode)
		return
	}
	fmt.Printf("Visitors on site: %d\n", result["onSite"])
}

func getAPIURL() string {
	if url := os.Getenv("GATEHOUSE_API_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.gatehouse/token"
}

func saveToken(token string) error {
	os.MkdirAll(filepath.Dir(tokenFile()), 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, err := os.ReadFile(tokenFile())
	if err != nil {
		return ""
	}
	return string(data)
}

func apiRequest(method, path string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, getAPIURL()+path, body)
	} else {
		req, err = http.NewRequest(method, getAPIURL()+path, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := loadToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return http.DefaultClient.Do(req)
}
