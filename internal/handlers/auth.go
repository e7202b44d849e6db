package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

type AuthHandler struct {
	DB          *gorm.DB
	JWTSecret   string
	Expires     int
	PhoneRegion string
}

type registerBase struct {
	Username  string `json:"username" validate:"required,min=3,max=60"`
	FirstName string `json:"nombre" validate:"required,max=100"`
	LastName  string `json:"apellido" validate:"max=100"`
	Email     string `json:"email" validate:"required,email,max=150"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Phone     string `json:"telefono" validate:"required"`
}

type RegisterWorkerReq struct {
	registerBase
	CategoryID uint `json:"categoria" validate:"required"`
	Experience int  `json:"experiencia" validate:"gte=0,lte=80"`
}

type RegisterContractorReq struct {
	registerBase
	Company string `json:"empresa" validate:"max=150"`
}

// normalize trims the shared fields and validates the phone number.
func (h *AuthHandler) normalize(b *registerBase) error {
	b.Username = strings.TrimSpace(b.Username)
	b.FirstName = strings.TrimSpace(b.FirstName)
	b.LastName = strings.TrimSpace(b.LastName)
	b.Email = strings.ToLower(strings.TrimSpace(b.Email))
	phone, err := utils.NormalizePhone(b.Phone, h.PhoneRegion)
	if err != nil {
		return apperr.InvalidFields("Error de validación", FieldErrors{"telefono": {"Número de teléfono inválido"}})
	}
	b.Phone = phone
	return nil
}

// checkIdentity keeps email and username unique across both account tables.
func (h *AuthHandler) checkIdentity(ctx context.Context, email, username string) error {
	errs := FieldErrors{}
	for _, model := range []any{&models.Worker{}, &models.Contractor{}} {
		var n int64
		if err := h.DB.WithContext(ctx).Model(model).Where("email = ?", email).Count(&n).Error; err != nil {
			return apperr.FromDB(err, "No se pudo verificar el email")
		}
		if n > 0 {
			errs.Add("email", "El email ya está registrado")
		}
		if err := h.DB.WithContext(ctx).Model(model).Where("username = ?", username).Count(&n).Error; err != nil {
			return apperr.FromDB(err, "No se pudo verificar el usuario")
		}
		if n > 0 {
			errs.Add("username", "El usuario ya está registrado")
		}
	}
	if len(errs) > 0 {
		return apperr.InvalidFields("Error de validación", errs)
	}
	return nil
}

func (h *AuthHandler) setSession(c *fiber.Ctx, email string, role models.Role) (string, error) {
	token, err := utils.SignJWT(h.JWTSecret, email, string(role), h.Expires)
	if err != nil {
		return "", apperr.Internal("No se pudo crear el token", err)
	}
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
		MaxAge:   h.Expires * 60,
	})
	return token, nil
}

func (h *AuthHandler) RegisterWorker(c *fiber.Ctx) error {
	var req RegisterWorkerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.normalize(&req.registerBase); err != nil {
		return err
	}
	if err := h.checkIdentity(c.UserContext(), req.Email, req.Username); err != nil {
		return err
	}
	var cat int64
	if err := h.DB.WithContext(c.UserContext()).Model(&models.Category{}).Where("id_categoria = ?", req.CategoryID).Count(&cat).Error; err != nil {
		return apperr.FromDB(err, "No se pudo verificar la categoría")
	}
	if cat == 0 {
		return apperr.InvalidFields("Error de validación", FieldErrors{"categoria": {"Categoría inexistente"}})
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperr.Internal("No se pudo procesar la contraseña", err)
	}
	w := models.Worker{
		Email:         req.Email,
		Username:      req.Username,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Password:      pw,
		Phone:         req.Phone,
		CategoryID:    req.CategoryID,
		Experience:    req.Experience,
		AverageRating: decimal.Zero,
		Available:     true,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("El email o usuario ya está registrado")
		}
		return apperr.FromDB(err, "No se pudo registrar")
	}

	token, err := h.setSession(c, w.Email, models.RoleWorker)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Registro exitoso", fiber.Map{
		"token": token,
		"user":  sessionUser(w.Email, w.Username, w.DisplayName(), models.RoleWorker),
	})
}

func (h *AuthHandler) RegisterContractor(c *fiber.Ctx) error {
	var req RegisterContractorReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.normalize(&req.registerBase); err != nil {
		return err
	}
	if err := h.checkIdentity(c.UserContext(), req.Email, req.Username); err != nil {
		return err
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		return apperr.Internal("No se pudo procesar la contraseña", err)
	}
	ct := models.Contractor{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  pw,
		Phone:     req.Phone,
		Company:   strings.TrimSpace(req.Company),
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&ct).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("El email o usuario ya está registrado")
		}
		return apperr.FromDB(err, "No se pudo registrar")
	}

	token, err := h.setSession(c, ct.Email, models.RoleContractor)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusCreated, "Registro exitoso", fiber.Map{
		"token": token,
		"user":  sessionUser(ct.Email, ct.Username, ct.DisplayName(), models.RoleContractor),
	})
}

func sessionUser(email, username, name string, role models.Role) fiber.Map {
	return fiber.Map{
		"email":    email,
		"username": username,
		"nombre":   name,
		"rol":      role,
	}
}

type LoginReq struct {
	// Identifier is an email or a username.
	Identifier string `json:"usuario" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type account struct {
	email, username, name, password string
	role                            models.Role
}

// findAccount looks the identifier up among workers first, then contractors.
func (h *AuthHandler) findAccount(ctx context.Context, ident string) (*account, error) {
	var w models.Worker
	err := h.DB.WithContext(ctx).Where("email = ? OR username = ?", strings.ToLower(ident), ident).First(&w).Error
	if err == nil {
		return &account{w.Email, w.Username, w.DisplayName(), w.Password, models.RoleWorker}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var ct models.Contractor
	err = h.DB.WithContext(ctx).Where("email = ? OR username = ?", strings.ToLower(ident), ident).First(&ct).Error
	if err != nil {
		return nil, err
	}
	return &account{ct.Email, ct.Username, ct.DisplayName(), ct.Password, models.RoleContractor}, nil
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ident := strings.TrimSpace(req.Identifier)

	acc, err := h.findAccount(c.UserContext(), ident)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "Usuario o contraseña incorrectos")
	}
	if err != nil {
		return apperr.FromDB(err, "No se pudo iniciar sesión")
	}
	if !utils.CheckPassword(acc.password, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "Usuario o contraseña incorrectos")
	}

	token, err := h.setSession(c, acc.email, acc.role)
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Inicio de sesión exitoso", fiber.Map{
		"token": token,
		"user":  sessionUser(acc.email, acc.username, acc.name, acc.role),
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})
	return ok(c, fiber.StatusOK, "Sesión cerrada", nil)
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	email := middleware.Email(c)
	if middleware.Role(c) == models.RoleWorker {
		var w models.Worker
		if err := h.DB.WithContext(c.UserContext()).First(&w, "email = ?", email).Error; err != nil {
			return apperr.FromDB(err, "Usuario no encontrado")
		}
		return ok(c, fiber.StatusOK, "", fiber.Map{"rol": models.RoleWorker, "perfil": w})
	}
	var ct models.Contractor
	if err := h.DB.WithContext(c.UserContext()).First(&ct, "email = ?", email).Error; err != nil {
		return apperr.FromDB(err, "Usuario no encontrado")
	}
	return ok(c, fiber.StatusOK, "", fiber.Map{"rol": models.RoleContractor, "perfil": ct})
}
