package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// --- Helper Functions ---
func WriteJSON(w http.ResponseWriter, code int, resp interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}

func EnableCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// --- JWT Helpers ---

// GenerateMatchToken issues the token a participant presents on the live
// match websocket.
func GenerateMatchToken(matchID, userID string, jwtSecret []byte) (string, error) {
	claims := jwt.MapClaims{
		"matchId": matchID,
		"userId":  userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseMatchToken verifies a match token and returns its matchId and userId
// claims.
func ParseMatchToken(tokenString string, jwtSecret []byte) (matchID, userID string, err error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid match token")
	}

	matchID, _ = claims["matchId"].(string)
	userID, _ = claims["userId"].(string)
	if matchID == "" || userID == "" {
		return "", "", fmt.Errorf("match token missing claims")
	}
	return matchID, userID, nil
}
