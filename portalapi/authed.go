package portalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/internhub/go-portal-gate/session"
)

// StudentProfile is a student's own profile record.
type StudentProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

// Project is an internship project assignment.
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}

// ProgressUpdate is a student's progress submission against a project.
type ProgressUpdate struct {
	Summary     string `json:"summary"`
	Percentage  int    `json:"percentage"`
	SubmittedAt string `json:"submittedAt,omitempty"`
}

// Intern is the admin-side view of a student.
type Intern struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Email    string       `json:"email,omitempty"`
	Role     session.Role `json:"role,omitempty"`
	Project  string       `json:"project,omitempty"`
	Progress int          `json:"progress,omitempty"`
	Active   bool         `json:"active"`
}

// Attendance is a single attendance record for an intern.
type Attendance struct {
	Date    string `json:"date"`
	Present bool   `json:"present"`
	Note    string `json:"note,omitempty"`
}

// AuthedClient is the authenticated portal surface. The Authorization header
// is supplied per request by the token source, so it always carries the
// current session's token even after a background refresh of the session.
type AuthedClient struct {
	base       *Client
	httpClient *http.Client
}

// Authed wraps the client with a bearer-token transport fed by ts.
func (c *Client) Authed(ts oauth2.TokenSource) *AuthedClient {
	return &AuthedClient{
		base: c,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: ts},
			Timeout:   c.httpClient.Timeout,
		},
	}
}

// StudentProfile fetches the profile for the given student.
func (ac *AuthedClient) StudentProfile(ctx context.Context, studentID string) (*StudentProfile, error) {
	var profile StudentProfile
	if err := ac.getJSON(ctx, fmt.Sprintf("/api/student/profile/%s", studentID), &profile); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.StudentProfile]")
	}
	return &profile, nil
}

// StudentProject fetches the project assigned to the current student.
func (ac *AuthedClient) StudentProject(ctx context.Context, projectID string) (*Project, error) {
	var project Project
	if err := ac.getJSON(ctx, fmt.Sprintf("/api/student/projects/%s", projectID), &project); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.StudentProject]")
	}
	return &project, nil
}

// SubmitProgressUpdate records a progress submission against a project.
func (ac *AuthedClient) SubmitProgressUpdate(ctx context.Context, projectID string, update ProgressUpdate) error {
	if err := ac.postJSON(ctx, fmt.Sprintf("/api/student/progress/%s", projectID), update, nil); err != nil {
		return errors.Wrap(err, "[AuthedClient.SubmitProgressUpdate]")
	}
	return nil
}

// Projects lists all projects (admin).
func (ac *AuthedClient) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := ac.getJSON(ctx, "/api/admin/projects", &projects); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.Projects]")
	}
	return projects, nil
}

// CreateProject creates a project (admin).
func (ac *AuthedClient) CreateProject(ctx context.Context, project Project) (*Project, error) {
	var created Project
	if err := ac.postJSON(ctx, "/api/admin/projects", project, &created); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.CreateProject]")
	}
	return &created, nil
}

// Interns lists current interns (admin).
func (ac *AuthedClient) Interns(ctx context.Context) ([]Intern, error) {
	var interns []Intern
	if err := ac.getJSON(ctx, "/api/interns", &interns); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.Interns]")
	}
	return interns, nil
}

// PastInterns lists interns whose internship has ended (admin).
func (ac *AuthedClient) PastInterns(ctx context.Context) ([]Intern, error) {
	var interns []Intern
	if err := ac.getJSON(ctx, "/api/interns/past", &interns); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.PastInterns]")
	}
	return interns, nil
}

// Intern fetches a single intern (admin).
func (ac *AuthedClient) Intern(ctx context.Context, internID string) (*Intern, error) {
	var intern Intern
	if err := ac.getJSON(ctx, fmt.Sprintf("/api/interns/%s", internID), &intern); err != nil {
		return nil, errors.Wrap(err, "[AuthedClient.Intern]")
	}
	return &intern, nil
}

// RecordAttendance records attendance for an intern (admin).
func (ac *AuthedClient) RecordAttendance(ctx context.Context, internID string, record Attendance) error {
	if err := ac.postJSON(ctx, fmt.Sprintf("/api/interns/%s/attendance", internID), record, nil); err != nil {
		return errors.Wrap(err, "[AuthedClient.RecordAttendance]")
	}
	return nil
}

func (ac *AuthedClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ac.base.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "NewRequest")
	}
	return ac.do(req, out)
}

func (ac *AuthedClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ac.base.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "NewRequest")
	}
	req.Header.Set("Content-Type", "application/json")
	return ac.do(req, out)
}

func (ac *AuthedClient) do(req *http.Request, out any) error {
	requestID := ac.base.tagRequest(req)

	resp, err := ac.httpClient.Do(req)
	if err != nil {
		ac.base.logger.Warn().Err(err).Str("request_id", requestID).Str("path", req.URL.Path).Msg("portal request failed")
		return errors.Wrapf(UnreachableErr, "%v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Fall through to decode.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrap(TokenInvalidErr, serverMessage(resp.Body, "session rejected"))
	default:
		return errors.Wrapf(UnexpectedStatusErr, "status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
