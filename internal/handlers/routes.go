package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/models"
)

type Deps struct {
	Auth          *AuthHandler
	Google        *GoogleOAuthHandler
	Categories    *CategoryHandler
	Requests      *RequestHandler
	Assignments   *AssignmentHandler
	Ratings       *RatingHandler
	Notifications *NotificationHandler
	Jobs          *JobHandler
	Favorites     *FavoriteHandler
	Locations     *LocationHandler
	Profile       *ProfileHandler
}

func Routes(app *fiber.App, d Deps) {
	if d.Profile.UploadDir != "" {
		app.Static("/uploads", d.Profile.UploadDir)
	}
	api := app.Group("/api")

	// public
	api.Post("/auth/register/trabajador", d.Auth.RegisterWorker)
	api.Post("/auth/register/contratista", d.Auth.RegisterContractor)
	api.Post("/auth/login", d.Auth.Login)
	api.Post("/auth/logout", d.Auth.Logout)
	if d.Google != nil {
		api.Get("/auth/google/start", d.Google.GoogleStart)
		api.Get("/auth/google/callback", d.Google.GoogleCallback)
	}
	api.Get("/categorias", d.Categories.GetCategories)

	protected := api.Group("/",
		middleware.JWTAuth(d.Auth.JWTSecret),
		middleware.AttachJWTLocals(),
	)
	worker := middleware.RequireRoles(models.RoleWorker)
	contractor := middleware.RequireRoles(models.RoleContractor)

	protected.Get("/me", d.Auth.Me)
	protected.Patch("/perfil", d.Profile.Update)
	protected.Post("/perfil/foto", d.Profile.UploadPhoto)

	// trabajador
	protected.Post("/solicitudes", worker, d.Requests.Apply)
	protected.Get("/solicitudes/numero-activas", worker, d.Requests.PendingCount)
	protected.Get("/solicitudes/activas", worker, d.Requests.ActiveApplications)
	protected.Get("/solicitudes/pendiente", worker, d.Requests.Pending)
	protected.Get("/asignaciones/actual", worker, d.Assignments.Current)
	protected.Put("/ubicacion/trabajador", worker, d.Locations.UpdateWorker)
	protected.Get("/trabajos/cercanos", worker, d.Jobs.Nearby)

	// contratista
	protected.Post("/asignaciones", contractor, d.Assignments.Assign)
	protected.Post("/asignaciones/finalizar", contractor, d.Assignments.Finalize)
	protected.Get("/asignaciones", contractor, d.Assignments.ListForContractor)
	protected.Get("/asignaciones/trabajo/:tipo/:id", contractor, d.Assignments.WorkersForJob)
	protected.Post("/calificaciones", contractor, d.Ratings.Rate)
	protected.Post("/trabajos/corto", contractor, d.Jobs.CreateShort)
	protected.Post("/trabajos/largo", contractor, d.Jobs.CreateLong)
	protected.Get("/trabajos/mios", contractor, d.Jobs.Mine)
	protected.Get("/favoritos", contractor, d.Favorites.List)
	protected.Post("/favoritos", contractor, d.Favorites.Add)
	protected.Delete("/favoritos/:email", contractor, d.Favorites.Remove)
	protected.Put("/ubicacion/contratista", contractor, d.Locations.UpdateContractor)
	protected.Get("/trabajadores/cercanos", contractor, d.Locations.NearbyWorkers)
	protected.Post("/notificaciones/interes", contractor, d.Assignments.NotifyInterest)
	protected.Post("/notificaciones/cancelacion", contractor, d.Assignments.NotifyCancellation)

	// ambos
	protected.Post("/asignaciones/cancelar", d.Assignments.Cancel)
	protected.Get("/calificaciones/:email", d.Ratings.ListForWorker)
	protected.Get("/notificaciones", d.Notifications.List)
	protected.Patch("/notificaciones/leidas", d.Notifications.MarkRead)
	protected.Delete("/notificaciones", d.Notifications.Clear)
	protected.Post("/dispositivos", d.Notifications.RegisterDevice)
	protected.Delete("/dispositivos", d.Notifications.RemoveDevice)

	// token in the query, browsers cannot set headers on a websocket
	app.Get("/ws/notifications", d.Notifications.UpgradeWebSocket, websocket.New(d.Notifications.WebSocket))
}
