package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Local copies of the persistence models so this script stays runnable on its
// own against a development database.

type OAuthClient struct {
	ID         string `gorm:"primaryKey"`
	Secret     string `gorm:"not null"`
	Name       string `gorm:"not null"`
	Domain     string
	UserID     uint
	Scopes     string `gorm:"not null"`
	GrantTypes string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Name      string
	Password  string `gorm:"not null"`
	Role      string `gorm:"default:'cliente'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func main() {
	// Parse command line flags
	dbPath := flag.String("db", "orders.sqlite", "Path to the development SQLite database")
	flag.Parse()

	db, err := gorm.Open(sqlite.Open(*dbPath), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	if err := db.AutoMigrate(&User{}, &OAuthClient{}); err != nil {
		log.Fatal("Failed to migrate schema:", err)
	}

	clientID := "kitchen-terminal"
	clientSecret := "kitchen-secret-123"

	// Check if client already exists
	var existing OAuthClient
	if err := db.Where("id = ?", clientID).First(&existing).Error; err == nil {
		fmt.Println("Kitchen terminal client already exists!")
		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Client Secret: %s\n", clientSecret)
		return
	}

	// The client acts on behalf of the pizzaiolo account
	pizzaioloID := getOrCreateUser(db, "pizzaiolo@awesomepizza.local", "Primo Pizzaiolo", "pizzaiolo", "pizzaiolo-123")
	if pizzaioloID == 0 {
		log.Fatal("Failed to get pizzaiolo user")
	}

	// A demo customer account for manual testing
	getOrCreateUser(db, "cliente@awesomepizza.local", "Mario Rossi", "cliente", "cliente-123")

	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash secret:", err)
	}

	client := OAuthClient{
		ID:         clientID,
		Secret:     string(hash),
		Name:       "Kitchen Terminal",
		Domain:     "http://localhost",
		UserID:     pizzaioloID,
		Scopes:     "orders:manage",
		GrantTypes: "client_credentials",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := db.Create(&client).Error; err != nil {
		log.Fatal("Failed to create client:", err)
	}

	fmt.Println("✓ Kitchen terminal OAuth client created!")
	fmt.Printf("Client ID: %s\n", clientID)
	fmt.Printf("Client Secret: %s\n", clientSecret)
	fmt.Printf("Acts as user ID: %d\n", pizzaioloID)
	fmt.Println("\nObtain a token with:")
	fmt.Printf("curl -X POST http://localhost:8080/oauth/token \\\n")
	fmt.Printf("  -d 'grant_type=client_credentials' \\\n")
	fmt.Printf("  -d 'client_id=%s' \\\n", clientID)
	fmt.Printf("  -d 'client_secret=%s'\n", clientSecret)
}

// getOrCreateUser finds a user by email or creates it with the given role.
func getOrCreateUser(db *gorm.DB, email, name, role, password string) uint {
	var user User
	if err := db.Where("email = ?", email).First(&user).Error; err == nil {
		fmt.Printf("Found existing user: %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
		return user.ID
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash password: %v", err)
		return 0
	}

	user = User{
		Email:     email,
		Name:      name,
		Password:  string(hash),
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.Create(&user).Error; err != nil {
		log.Printf("Failed to create user: %v", err)
		return 0
	}

	fmt.Printf("Created user: %s (ID: %d, Role: %s)\n", user.Email, user.ID, user.Role)
	return user.ID
}
