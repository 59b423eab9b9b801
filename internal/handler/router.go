package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
)

// Handlers groups every HTTP handler mounted under the API prefix.
type Handlers struct {
	Bookings     *BookingHandler
	Availability *AvailabilityHandler
	Tutors       *TutorHandler
	Progress     *ProgressHandler
	Goals        *GoalHandler
	Certificates *CertificateHandler
	Resources    *ResourceHandler
	Reviews      *ReviewHandler
	Messages     *MessageHandler
	Payments     *PaymentHandler
	Profiles     *ProfileHandler
	Admin        *AdminHandler
	Downloads    *DownloadHandler
	Realtime     *RealtimeHandler
}

// Register mounts the API routes on api. Every route except signed downloads requires a
// bearer token.
func Register(api *gin.RouterGroup, auth middleware.Authenticator, h Handlers) {
	if h.Downloads != nil {
		api.GET("/downloads/:token", h.Downloads.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(auth))

	students := middleware.RequireRoles(models.RoleStudent)
	tutors := middleware.RequireRoles(models.RoleTutor)
	staff := middleware.RequireRoles(models.RoleTutor, models.RoleAdmin)
	admins := middleware.RequireRoles(models.RoleAdmin)

	if h.Profiles != nil {
		secured.GET("/me", h.Profiles.Me)
		secured.PUT("/me", h.Profiles.Update)
		secured.GET("/me/children", students, h.Profiles.Children)
		secured.POST("/me/children", students, h.Profiles.LinkChild)
		secured.DELETE("/me/children/:child_id", students, h.Profiles.UnlinkChild)
		secured.GET("/navigation/resolve", h.Profiles.Navigate)
	}

	if h.Tutors != nil {
		secured.GET("/tutors", h.Tutors.Search)
		secured.GET("/tutors/me", tutors, h.Tutors.Mine)
		secured.PUT("/tutors/me", tutors, h.Tutors.Save)
		secured.GET("/tutors/:id", h.Tutors.Get)
		secured.GET("/tutors/:id/reviews", h.Tutors.Reviews)
		secured.GET("/catalogue/subjects", h.Tutors.Subjects)
		secured.GET("/catalogue/qualifications", h.Tutors.Qualifications)
	}

	if h.Availability != nil {
		secured.GET("/tutors/:id/availability", h.Availability.ListWindows)
		secured.GET("/tutors/:id/slots", h.Availability.Slots)
		secured.POST("/availability", tutors, h.Availability.Create)
		secured.PUT("/availability/:id", tutors, h.Availability.Update)
		secured.DELETE("/availability/:id", tutors, h.Availability.Delete)
	}

	if h.Bookings != nil {
		secured.POST("/bookings", students, h.Bookings.Create)
		secured.GET("/bookings", h.Bookings.List)
		secured.POST("/bookings/conflicts", h.Bookings.CheckConflict)
		secured.GET("/bookings/:id", h.Bookings.Get)
		secured.POST("/bookings/:id/confirm", staff, h.Bookings.Confirm)
		secured.POST("/bookings/:id/cancel", h.Bookings.Cancel)
		secured.POST("/bookings/:id/complete", staff, h.Bookings.Complete)
		secured.POST("/bookings/:id/reschedule", h.Bookings.Reschedule)
	}

	if h.Payments != nil {
		secured.POST("/bookings/:id/payment", students, h.Payments.Pay)
		secured.GET("/bookings/:id/payment", h.Payments.ForBooking)
		secured.GET("/payments", h.Payments.History)
		secured.GET("/earnings", tutors, h.Payments.Earnings)
	}

	if h.Progress != nil {
		secured.POST("/progress", tutors, h.Progress.Add)
		secured.GET("/progress", h.Progress.List)
		secured.GET("/progress/chart", h.Progress.Chart)
		secured.GET("/progress/sessions", h.Progress.Sessions)
		secured.POST("/progress/export", h.Progress.Export)
	}

	if h.Goals != nil {
		secured.GET("/goals", h.Goals.List)
		secured.POST("/goals", tutors, h.Goals.Create)
		secured.PUT("/goals/:id/achieved", tutors, h.Goals.SetAchieved)
		secured.DELETE("/goals/:id", tutors, h.Goals.Delete)
	}

	if h.Certificates != nil {
		secured.POST("/certificates", tutors, h.Certificates.Upload)
		secured.GET("/certificates", staff, h.Certificates.List)
		secured.GET("/certificates/:id/link", staff, h.Certificates.Link)
		secured.DELETE("/certificates/:id", staff, h.Certificates.Delete)
	}

	if h.Resources != nil {
		secured.POST("/resources", tutors, h.Resources.Upload)
		secured.GET("/resources", h.Resources.List)
		secured.GET("/resources/:id/link", h.Resources.Link)
		secured.DELETE("/resources/:id", staff, h.Resources.Delete)
	}

	if h.Reviews != nil {
		secured.POST("/reviews", students, h.Reviews.Create)
	}

	if h.Messages != nil {
		secured.POST("/messages", h.Messages.Send)
		secured.GET("/messages", h.Messages.Conversations)
		secured.GET("/messages/:user_id", h.Messages.Thread)
		secured.GET("/notifications", h.Messages.Notifications)
		secured.POST("/notifications/read-all", h.Messages.MarkAllRead)
		secured.POST("/notifications/:id/read", h.Messages.MarkRead)
	}

	if h.Realtime != nil {
		secured.GET("/realtime/stream", h.Realtime.Stream)
	}

	if h.Admin != nil {
		admin := secured.Group("/admin", admins)
		admin.GET("/overview", h.Admin.Overview)
		admin.GET("/users", h.Admin.Users)
		admin.PUT("/users/:id/role", h.Admin.SetRole)
		admin.PUT("/tutors/:id/approval", h.Admin.ApproveTutor)
		admin.PUT("/certificates/:id/approval", h.Admin.ApproveCertificate)
		admin.PUT("/bookings/:id/status", h.Admin.OverrideBooking)
		if h.Reviews != nil {
			admin.DELETE("/reviews/:id", h.Reviews.Delete)
		}
	}
}
