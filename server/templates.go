package server

const loginTemplate = `<!doctype html>
<html>
<head><title>Internship Portal - Login</title></head>
<body>
<h1>Sign in</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <label>Email or username
    <input type="text" name="identifier" value="{{.Identifier}}" required>
  </label>
  <label>Password
    <input type="password" name="password" required>
  </label>
  <button type="submit">Log in</button>
</form>
<p><a href="/register">Apply for an internship</a></p>
</body>
</html>`

const registerTemplate = `<!doctype html>
<html>
<head><title>Internship Portal - Apply</title></head>
<body>
<h1>Internship application</h1>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{if .Success}}
<section>
  <p>Registration successful! Your application has been submitted.</p>
  <p>Your login credentials are shown once, save them now:</p>
  <p>Username: <strong>{{.Username}}</strong></p>
  <p>Password: <strong>{{.Password}}</strong></p>
  <p><a href="/login">Continue to login</a></p>
</section>
{{else}}
<form method="post" action="/register">
  <label>First name <input type="text" name="first_name" value="{{.FirstName}}" required></label>
  <label>Last name <input type="text" name="last_name" value="{{.LastName}}"></label>
  <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
  <label>Phone <input type="text" name="phone" value="{{.Phone}}"></label>
  <label>University <input type="text" name="university" value="{{.University}}"></label>
  <label>Domain <input type="text" name="domain" value="{{.Domain}}"></label>
  <label>Department <input type="text" name="department" value="{{.Department}}"></label>
  <label>Start date <input type="date" name="start_date" value="{{.StartDate}}"></label>
  <label>End date <input type="date" name="end_date" value="{{.EndDate}}"></label>
  <button type="submit">Submit application</button>
</form>
{{end}}
</body>
</html>`

const studentTemplate = `<!doctype html>
<html>
<head><title>Internship Portal - Student</title></head>
<body>
<h1>Welcome{{if .User}}, {{.User.Name}}{{end}}</h1>
{{if .Profile}}
<section>
  <h2>Profile</h2>
  <p>{{.Profile.Name}} {{if .Profile.Email}}({{.Profile.Email}}){{end}}</p>
</section>
{{end}}
{{if .Project}}
<section>
  <h2>Assigned project</h2>
  <p><strong>{{.Project.Title}}</strong> &mdash; {{.Project.Status}}</p>
  <p>{{.Project.Description}}</p>
  <form method="post" action="/student/progress">
    <input type="hidden" name="project_id" value="{{.Project.ID}}">
    <label>Progress summary <textarea name="summary" required></textarea></label>
    <label>Completion % <input type="number" name="percentage" min="0" max="100"></label>
    <button type="submit">Submit update</button>
  </form>
</section>
{{else}}
<p>No project assigned yet.</p>
{{end}}
<form method="post" action="/logout"><button type="submit">Log out</button></form>
</body>
</html>`

const adminTemplate = `<!doctype html>
<html>
<head><title>Internship Portal - {{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Interns}}
<table>
  <tr><th>Name</th><th>Email</th><th>Project</th><th>Progress</th><th>Attendance</th></tr>
  {{range .Interns}}
  <tr>
    <td><a href="/admin/interns/{{.ID}}">{{.Name}}</a></td>
    <td>{{.Email}}</td>
    <td>{{.Project}}</td>
    <td>{{.Progress}}%</td>
    <td>
      <form method="post" action="/admin/attendance">
        <input type="hidden" name="intern_id" value="{{.ID}}">
        <input type="date" name="date">
        <label><input type="checkbox" name="present" checked> Present</label>
        <button type="submit">Record</button>
      </form>
    </td>
  </tr>
  {{end}}
</table>
{{end}}
{{if .Projects}}
<table>
  <tr><th>Title</th><th>Status</th><th>Deadline</th></tr>
  {{range .Projects}}
  <tr><td>{{.Title}}</td><td>{{.Status}}</td><td>{{.Deadline}}</td></tr>
  {{end}}
</table>
{{end}}
{{if .CanCreateProject}}
<form method="post" action="/admin/projects">
  <h2>New project</h2>
  <label>Title <input type="text" name="title" required></label>
  <label>Description <textarea name="description"></textarea></label>
  <label>Deadline <input type="date" name="deadline"></label>
  <button type="submit">Create</button>
</form>
{{end}}
<form method="post" action="/logout"><button type="submit">Log out</button></form>
</body>
</html>`
