package echoapi

import (
	"context"
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/fitprize/fitprize/core"
	"github.com/fitprize/fitprize/core/school"
	"github.com/fitprize/fitprize/core/user"
)

const contextCallerKey = "caller"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
	SchoolID     string `json:"schoolId,omitempty"`
}

// Authenticator issues tokens and resolves them back into the identity of the caller.
// The identity is looked up on every request, so deleted or deactivated accounts lose access
// before their token expires.
type Authenticator struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
	usrSvc    user.Service
	schoolSvc *school.Service
}

func NewAuthenticator(conf *core.Config, usrSvc user.Service, schoolSvc *school.Service) *Authenticator {
	return &Authenticator{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    "userToken",
			Claims:        new(Claims),
		},
		usrSvc:    usrSvc,
		schoolSvc: schoolSvc,
	}
}

func (a *Authenticator) Claims(caller user.Caller, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    a.conf.AppName,
			Subject:   caller.ID,
			ExpiresAt: now.Add(a.conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        caller.Email,
		Role:         caller.Role,
		SchoolID:     caller.SchoolID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (a *Authenticator) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its claims.
func (a *Authenticator) ParseToken(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != a.jwtConfig.SigningMethod {
			return nil, fmt.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return a.jwtConfig.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, core.ErrUnauthenticated
	}
	return claims, nil
}

// Resolve looks up the account behind claims. It must exist, not be deleted and be active.
func (a *Authenticator) Resolve(ctx context.Context, claims Claims) (user.Caller, error) {
	if claims.Role == user.RoleTeacher {
		tchr, err := a.schoolSvc.TeacherByID(ctx, claims.Subject)
		if err != nil {
			if core.IsNotFound(err) {
				return user.Caller{}, core.ErrUnauthenticated
			}
			return user.Caller{}, errors.Wrap(err, "finding teacher by ID")
		}
		if !tchr.IsActive() {
			return user.Caller{}, user.ErrAccountInactive
		}
		return tchr.Caller(), nil
	}

	usr, err := a.usrSvc.GetByID(ctx, claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.Caller{}, core.ErrUnauthenticated
		}
		return user.Caller{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive() {
		return user.Caller{}, user.ErrAccountInactive
	}
	return usr.Caller(), nil
}

// Authenticate resolves a bearer token into the identity of the caller. It backs the websocket endpoint.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (user.Caller, error) {
	claims, err := a.ParseToken(token)
	if err != nil {
		return user.Caller{}, err
	}
	return a.Resolve(ctx, *claims)
}

// middleware verifies the bearer token and stores the resolved user.Caller in the echo.Context.
func (a *Authenticator) middleware() echo.MiddlewareFunc {
	jwtMiddleware := middleware.JWTWithConfig(a.jwtConfig)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return jwtMiddleware(func(ctx echo.Context) error {
			claims, err := a.contextClaims(ctx)
			if err != nil {
				return err
			}
			caller, err := a.Resolve(ctx.Request().Context(), claims)
			if err != nil {
				return err
			}
			ctx.Set(contextCallerKey, caller)
			return next(ctx)
		})
	}
}

func (a *Authenticator) contextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(a.jwtConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, core.ErrUnauthenticated
}

func (a *Authenticator) refreshToken(ctx echo.Context) (string, error) {
	claims, err := a.contextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	caller, err := contextCaller(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context caller")
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.GenerateToken(a.Claims(caller, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}

func contextCaller(ctx echo.Context) (user.Caller, error) {
	if caller, ok := ctx.Get(contextCallerKey).(user.Caller); ok {
		return caller, nil
	}
	return user.Caller{}, core.ErrUnauthenticated
}
