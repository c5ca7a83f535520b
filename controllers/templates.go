package controllers

import "html/template"

const homePage = `{{define "home.html"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>objgate</title></head>
<body>
<h1>objgate</h1>
<p>Objects are stored in bucket <code>{{.Bucket}}</code>.</p>
<ul>
<li><code>POST /upload</code> with the raw file as the request body. The response is the URL of the new object.</li>
<li><code>GET /objects/{name}</code> downloads an object.</li>
<li><a href="/objects"><code>GET /objects</code></a> lists every object.</li>
</ul>
<pre>curl --data-binary @photo.jpg -H 'Content-Type: image/jpeg' {{.BaseURL}}/upload</pre>
</body>
</html>
{{end}}`

const objectsPage = `{{define "objects.html"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>objgate: {{.Bucket}}</title></head>
<body>
<h1>{{.Count}} objects in {{.Bucket}}</h1>
<table>
<tr><th>Key</th><th>Size</th><th>Last modified</th></tr>
{{range .Objects}}<tr><td><a href="{{.URL}}">{{.Key}}</a></td><td>{{.Size}}</td><td>{{.LastModified.Format "2006-01-02 15:04:05"}}</td></tr>
{{end}}</table>
</body>
</html>
{{end}}`

// Templates returns the HTML templates the controllers render by name
func Templates() *template.Template {
	t := template.Must(template.New("pages").Parse(homePage))
	return template.Must(t.Parse(objectsPage))
}
