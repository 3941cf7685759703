package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nurpe/coldstore/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims. The subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
	parser *jwt.Parser
}

func NewParser(secret string) *Parser {
	return &Parser{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

func (p *Parser) Parse(tokenString string) (model.Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return model.Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := p.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return model.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Principal{}, errors.Join(ErrInvalidToken, err)
	}
	role, ok := normalizeRole(claims.Role)
	if !ok {
		return model.Principal{}, errors.Join(ErrInvalidToken, errors.New("unknown role"))
	}

	return model.Principal{UserID: userID, Role: role}, nil
}

func normalizeRole(raw string) (model.UserRole, bool) {
	role := model.UserRole(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case model.UserRoleAdmin, model.UserRoleOperator, model.UserRoleViewer:
		return role, true
	default:
		return "", false
	}
}
