package routes

import (
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// controllers and their dependencies
	s := controllers.GetSrv(a)
	uc := controllers.GetUserController(s.Repo, s.AppSess, a.Config)
	inviteCtl := controllers.GetInviteController(s)
	bookCtl := controllers.NewBookController(s)
	loanCtl := controllers.NewLoanController(a.Repo, a.Workflow, a.Sink, a.Logger.With("component", "loans")).
		UseDashboardCache(s.Dashboards)
	fineCtl := controllers.NewFineController(s)
	noteCtl := controllers.NewNotificationController(s)
	ebookCtl := controllers.NewEBookController(s)
	dashCtl := controllers.NewDashboardController(s)
	auditCtl := controllers.NewAuditController(s)

	// shared middleware
	authMW := app.AuthRequired(s.AppSess, s.Repo, a.Config)
	librarianMW := app.LibrarianOnly()
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)

	// ------------------------------
	// WebAuthn (public + signed in)
	// ------------------------------
	wa := r.Group("/webauthn")
	{
		wa.POST("/register/begin", s.BeginRegistration)
		wa.POST("/register/finish", s.FinishRegistration)

		wa.POST("/login/begin", s.BeginLogin)
		wa.POST("/login/finish", s.FinishLogin)
	}

	waAuth := wa.Group("", authMW, seenMW)
	{
		waAuth.GET("/whoami", s.WhoAmI)
		waAuth.POST("/logout", s.Logout)
	}

	// extra passkey for a signed-in user
	creds := r.Group("/api/credentials", authMW, seenMW)
	{
		creds.POST("/add/begin", s.BeginAddCredential)
		creds.POST("/add/finish", s.FinishAddCredential)
	}

	// ------------------------------
	// Invites and users (librarians)
	// ------------------------------
	admin := r.Group("/admin", authMW, librarianMW)
	{
		admin.POST("/invites", inviteCtl.CreateInvite)
	}

	users := r.Group("/api/users", authMW, librarianMW)
	{
		users.GET("", uc.ListUsers) // ?q=&role=&page=&size=
		users.GET("/:id", uc.GetUser)
		users.DELETE("/:id", uc.DeleteUser)
	}

	// ------------------------------
	// Catalog
	// ------------------------------
	books := r.Group("/api/books", authMW, seenMW)
	{
		books.GET("", bookCtl.ListBooks) // ?q=&category=&available=&page=&size=
		books.GET("/:id", bookCtl.GetBook)
	}
	booksAdmin := r.Group("/api/books", authMW, librarianMW)
	{
		booksAdmin.POST("", bookCtl.CreateBook)
		booksAdmin.PUT("/:id", bookCtl.UpdateBook)
		booksAdmin.DELETE("/:id", bookCtl.DeleteBook)
	}

	// ------------------------------
	// Circulation
	// ------------------------------
	loans := r.Group("/api/loans", authMW, seenMW)
	{
		loans.GET("", loanCtl.ListLoans) // ?status=active|issued|overdue|returned&userId=&bookId=
	}
	desk := r.Group("/api/loans", authMW, librarianMW)
	{
		desk.POST("", loanCtl.Issue)
		desk.GET("/:loanId/return", loanCtl.ReturnPreview)
		desk.POST("/:loanId/return", loanCtl.Return)
	}

	fines := r.Group("/api/fines", authMW, seenMW)
	{
		fines.GET("", fineCtl.ListFines) // ?status=pending|paid&userId=
		fines.POST("/:id/pay", librarianMW, fineCtl.PayFine)
	}

	// ------------------------------
	// Notifications, e-books, dashboard
	// ------------------------------
	notes := r.Group("/api/notifications", authMW, seenMW)
	{
		notes.GET("", noteCtl.ListNotifications)
		notes.POST("/:id/read", noteCtl.MarkRead)
		notes.GET("/stream", noteCtl.Stream)
	}

	ebooks := r.Group("/api/ebook-requests", authMW, seenMW)
	{
		ebooks.POST("", ebookCtl.CreateRequest)
		ebooks.GET("", ebookCtl.ListRequests)
		ebooks.POST("/:id/decision", librarianMW, ebookCtl.Decide)
	}

	r.GET("/api/dashboard", authMW, seenMW, dashCtl.Dashboard)
	r.GET("/api/audit", authMW, librarianMW, auditCtl.ListAudit)
}
