package server

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/internhub/go-portal-gate/portalapi"
	"github.com/internhub/go-portal-gate/session"
)

// HealthzHandler reports gateway liveness, including whether the portal
// backend answers.
func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request) {
	if !s.backend.Health(r.Context()) {
		http.Error(w, "backend unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// IndexHandler routes the visitor to their landing page by role.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	status := s.gate.Status()
	switch {
	case !status.IsAuthenticated:
		http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
	case status.IsAdmin:
		http.Redirect(w, r, RouteAdminHome, http.StatusSeeOther)
	default:
		http.Redirect(w, r, RouteStudentHome, http.StatusSeeOther)
	}
}

// LoginPageData contains data for rendering the login page.
type LoginPageData struct {
	Error      string
	Identifier string // Preserve the identifier on error
}

// LoginPageHandler displays the login form (GET /login).
func (s *Server) LoginPageHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("login").Parse(loginTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		if s.gate.Status().IsAuthenticated {
			s.IndexHandler(w, r)
			return
		}
		data := LoginPageData{
			Error:      r.URL.Query().Get("error"),
			Identifier: r.URL.Query().Get("identifier"),
		}
		s.render(w, tmpl, data)
	}
}

// LoginSubmitHandler authenticates the submitted credentials (POST /login).
// A failed login is the only place an error message is shown to the user;
// every other auth failure silently redirects to the login page.
func (s *Server) LoginSubmitHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	identifier := r.PostFormValue("identifier")
	password := r.PostFormValue("password")

	role, err := s.gate.Login(r.Context(), identifier, password)
	if err != nil {
		query := url.Values{
			"error":      {loginErrorMessage(err)},
			"identifier": {identifier},
		}
		http.Redirect(w, r, RouteLogin+"?"+query.Encode(), http.StatusSeeOther)
		return
	}

	if role == session.RoleAdmin {
		http.Redirect(w, r, RouteAdminHome, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, RouteStudentHome, http.StatusSeeOther)
}

// LogoutHandler clears the session and returns to the login entry point.
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	s.gate.Logout()
	http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
}

// RegisterPageData contains data for the registration page. On a failed
// submission the entered fields are preserved; on success the generated
// credentials are shown once.
type RegisterPageData struct {
	Error      string
	Success    bool
	Username   string
	Password   string
	FirstName  string
	LastName   string
	Email      string
	Phone      string
	University string
	Domain     string
	Department string
	StartDate  string
	EndDate    string
}

// RegisterPageHandler displays the internship application form (GET /register).
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("register").Parse(registerTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		if s.gate.Status().IsAuthenticated {
			s.IndexHandler(w, r)
			return
		}
		s.render(w, tmpl, RegisterPageData{})
	}
}

// RegisterSubmitHandler submits an internship application (POST /register).
// The student account credentials are generated here and shown to the
// applicant once.
func (s *Server) RegisterSubmitHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("register").Parse(registerTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		data := RegisterPageData{
			FirstName:  strings.TrimSpace(r.PostFormValue("first_name")),
			LastName:   strings.TrimSpace(r.PostFormValue("last_name")),
			Email:      strings.TrimSpace(r.PostFormValue("email")),
			Phone:      r.PostFormValue("phone"),
			University: r.PostFormValue("university"),
			Domain:     r.PostFormValue("domain"),
			Department: r.PostFormValue("department"),
			StartDate:  r.PostFormValue("start_date"),
			EndDate:    r.PostFormValue("end_date"),
		}
		if data.FirstName == "" || !strings.Contains(data.Email, "@") {
			data.Error = "first name and a valid email are required"
			s.render(w, tmpl, data)
			return
		}

		username, password := generateCredentials(data.FirstName)
		reg := portalapi.Registration{
			Name:           strings.TrimSpace(data.FirstName + " " + data.LastName),
			Email:          data.Email,
			Username:       username,
			Password:       password,
			Phone:          data.Phone,
			University:     data.University,
			Domain:         data.Domain,
			Department:     data.Department,
			StartDate:      data.StartDate,
			EndDate:        data.EndDate,
			DurationMonths: durationMonths(data.StartDate, data.EndDate),
		}
		if err := s.backend.Register(r.Context(), reg); err != nil {
			s.logger.Warn().Err(err).Msg("registration failed")
			data.Error = registerErrorMessage(err)
			s.render(w, tmpl, data)
			return
		}

		s.render(w, tmpl, RegisterPageData{Success: true, Username: username, Password: password})
	}
}

// StudentPageData contains data for the student landing page.
type StudentPageData struct {
	User    *session.User
	Profile *portalapi.StudentProfile
	Project *portalapi.Project
}

// StudentHomeHandler renders the student's profile and assigned project.
func (s *Server) StudentHomeHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("student").Parse(studentTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		user := s.currentUser()
		if user == nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		data := StudentPageData{User: user}
		profile, err := s.authed.StudentProfile(r.Context(), user.ID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed fetching student profile")
		} else {
			data.Profile = profile
			if profile.ProjectID != "" {
				if project, err := s.authed.StudentProject(r.Context(), profile.ProjectID); err == nil {
					data.Project = project
				}
			}
		}
		s.render(w, tmpl, data)
	}
}

// StudentProgressHandler records a progress submission (POST /student/progress).
func (s *Server) StudentProgressHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	percentage := 0
	if raw := r.PostFormValue("percentage"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < 0 || p > 100 {
			http.Error(w, "percentage must be a number between 0 and 100", http.StatusBadRequest)
			return
		}
		percentage = p
	}
	update := portalapi.ProgressUpdate{
		Summary:    r.PostFormValue("summary"),
		Percentage: percentage,
	}
	projectID := r.PostFormValue("project_id")

	if err := s.authed.SubmitProgressUpdate(r.Context(), projectID, update); err != nil {
		s.logger.Warn().Err(err).Msg("failed submitting progress update")
		http.Error(w, "could not submit progress update", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, RouteStudentHome, http.StatusSeeOther)
}

// AdminPageData contains data for admin list pages.
type AdminPageData struct {
	User             *session.User
	Title            string
	Interns          []portalapi.Intern
	Projects         []portalapi.Project
	CanCreateProject bool
}

// AdminHomeHandler renders the admin dashboard with the current interns.
func (s *Server) AdminHomeHandler() http.HandlerFunc {
	return s.internListHandler("Dashboard", func(r *http.Request) ([]portalapi.Intern, error) {
		return s.authed.Interns(r.Context())
	})
}

// AdminInternsHandler lists current interns.
func (s *Server) AdminInternsHandler() http.HandlerFunc {
	return s.internListHandler("Interns", func(r *http.Request) ([]portalapi.Intern, error) {
		return s.authed.Interns(r.Context())
	})
}

// AdminPastInternsHandler lists interns whose internship has ended.
func (s *Server) AdminPastInternsHandler() http.HandlerFunc {
	return s.internListHandler("Past Interns", func(r *http.Request) ([]portalapi.Intern, error) {
		return s.authed.PastInterns(r.Context())
	})
}

// AdminInternDetailHandler renders a single intern (GET /admin/interns/{internID}).
func (s *Server) AdminInternDetailHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("admin").Parse(adminTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		intern, err := s.authed.Intern(r.Context(), chi.URLParam(r, "internID"))
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed fetching intern")
			http.Error(w, "could not fetch intern", http.StatusBadGateway)
			return
		}
		s.render(w, tmpl, AdminPageData{
			User:    s.currentUser(),
			Title:   intern.Name,
			Interns: []portalapi.Intern{*intern},
		})
	}
}

// AdminAttendanceHandler records an attendance entry (POST /admin/attendance).
func (s *Server) AdminAttendanceHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	internID := r.PostFormValue("intern_id")
	if internID == "" {
		http.Error(w, "intern_id is required", http.StatusBadRequest)
		return
	}

	record := portalapi.Attendance{
		Date:    r.PostFormValue("date"),
		Present: r.PostFormValue("present") != "",
		Note:    r.PostFormValue("note"),
	}
	if record.Date == "" {
		record.Date = time.Now().Format("2006-01-02")
	}

	if err := s.authed.RecordAttendance(r.Context(), internID, record); err != nil {
		s.logger.Warn().Err(err).Msg("failed recording attendance")
		http.Error(w, "could not record attendance", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, RouteAdminInterns, http.StatusSeeOther)
}

// AdminProjectsHandler lists all projects.
func (s *Server) AdminProjectsHandler() http.HandlerFunc {
	tmpl := template.Must(template.New("admin").Parse(adminTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := s.authed.Projects(r.Context())
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed fetching projects")
		}
		s.render(w, tmpl, AdminPageData{
			User:             s.currentUser(),
			Title:            "Projects",
			Projects:         projects,
			CanCreateProject: true,
		})
	}
}

// AdminCreateProjectHandler creates a project (POST /admin/projects).
func (s *Server) AdminCreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	title := strings.TrimSpace(r.PostFormValue("title"))
	if title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	project := portalapi.Project{
		Title:       title,
		Description: r.PostFormValue("description"),
		Deadline:    r.PostFormValue("deadline"),
	}
	if _, err := s.authed.CreateProject(r.Context(), project); err != nil {
		s.logger.Warn().Err(err).Msg("failed creating project")
		http.Error(w, "could not create project", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, RouteAdminProjects, http.StatusSeeOther)
}

func (s *Server) internListHandler(title string, fetch func(*http.Request) ([]portalapi.Intern, error)) http.HandlerFunc {
	tmpl := template.Must(template.New("admin").Parse(adminTemplate))

	return func(w http.ResponseWriter, r *http.Request) {
		interns, err := fetch(r)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed fetching interns")
		}
		s.render(w, tmpl, AdminPageData{
			User:    s.currentUser(),
			Title:   title,
			Interns: interns,
		})
	}
}

func (s *Server) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error().Err(err).Msg("template render failed")
	}
}

// loginErrorMessage keeps the server's human-readable rejection message and
// collapses transport failures to a generic one.
func loginErrorMessage(err error) string {
	var credErr *portalapi.CredentialsError
	if errors.As(err, &credErr) {
		return credErr.Message
	}
	return "could not reach the portal, try again shortly"
}

func registerErrorMessage(err error) string {
	var regErr *portalapi.RegistrationError
	if errors.As(err, &regErr) {
		return regErr.Message
	}
	return "could not reach the portal, try again shortly"
}

// generateCredentials derives a username from the applicant's first name and
// pairs it with a random password. Shown to the applicant once on success.
func generateCredentials(firstName string) (username, password string) {
	seed := strings.ReplaceAll(uuid.NewString(), "-", "")
	username = strings.ToLower(strings.ReplaceAll(firstName, " ", "")) + seed[:4]
	password = seed[len(seed)-8:]
	return username, password
}

// durationMonths derives the internship duration from the requested dates,
// rounding up to whole months. Unparseable or inverted dates fall back to the
// standard three-month term.
func durationMonths(start, end string) int {
	const layout = "2006-01-02"
	s, errStart := time.Parse(layout, start)
	e, errEnd := time.Parse(layout, end)
	if errStart != nil || errEnd != nil || !e.After(s) {
		return 3
	}
	days := int(e.Sub(s).Hours() / 24)
	months := (days + 29) / 30
	if months < 1 {
		months = 1
	}
	return months
}
