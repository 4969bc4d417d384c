package guard

import (
	"embed"
	"encoding/json"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

//go:embed resources
var resources embed.FS

const (
	loginTemplate = "templates/login.html"
	indexTemplate = "templates/index.html"
)

func consoleResources() fs.FS {
	sub, err := fs.Sub(resources, "resources")
	if err != nil {
		panic(err)
	}
	return sub
}

// Console serves the admin pages and endpoints that the security policies protect.
type Console struct {
	props     AdminServerProperties
	policy    SecurityConfig
	templates TemplatingEngine
	assets    fs.FS
	registry  InstanceRegistry
	metrics   *Metrics
}

func NewConsole(props AdminServerProperties, policy SecurityConfig, registry InstanceRegistry, metrics *Metrics) (*Console, error) {
	fsys := consoleResources()
	templates, err := NewTemplatingEngine(fsys, nil, loginTemplate, indexTemplate)
	if err != nil {
		return nil, err
	}
	assets, err := fs.Sub(fsys, "assets")
	if err != nil {
		return nil, Wrap(err)
	}
	return &Console{
		props:     props,
		policy:    policy,
		templates: templates,
		assets:    assets,
		registry:  registry,
		metrics:   metrics,
	}, nil
}

// Routes lists the console endpoints below the context path.
func (c *Console) Routes() Route {
	inner := RouteList{
		{Name: "index", Path: "/", Method: GET, Handler: c.index},
		{Name: "assets", Path: "/assets/*filepath", Method: GET, Handler: c.asset},
		{Name: "instances_list", Path: "/instances", Method: GET, Handler: c.listInstances},
		{Name: "instances_register", Path: "/instances", Method: POST, Handler: c.registerInstance},
		{Name: "instances_deregister", Path: "/instances/:id", Method: DELETE, Handler: c.deregisterInstance},
		{Name: "actuator_health", Path: "/actuator/health", Method: GET, Handler: c.health},
		{Name: "actuator_prometheus", Path: "/actuator/prometheus", Method: GET, Handler: c.metrics.Handler()},
	}
	routes := Route{Path: c.props.ContextPath, Inner: inner}
	if c.policy.FormLogin == nil {
		return routes
	}
	loginPage := Route{Name: "login", Path: c.policy.FormLogin.LoginPage, Method: GET, Handler: c.loginPage}
	return Route{Inner: RouteList{routes, loginPage}}
}

func (c *Console) render(name string, vars Vars) Response {
	vars["BasePath"] = strings.TrimRight(c.props.ContextPath, "/")
	buf, err := c.templates.Render(name, vars)
	if err != nil {
		return NewErrorHtmlResponse(Wrap(err))
	}
	return NewHtmlResponse(buf.Bytes(), http.StatusOK)
}

func csrfVar(req Request) interface{} {
	if token, ok := CsrfTokenFromContext(req.Context()); ok {
		return token
	}
	return nil
}

func (c *Console) loginPage(req Request) Response {
	action := c.policy.FormLogin.LoginPage
	param := c.policy.FormLogin.TargetUrlParameter
	if target := req.URL.Query().Get(param); param != "" && target != "" {
		action += "?" + url.Values{param: {target}}.Encode()
	}
	query := req.URL.Query()
	return c.render(loginTemplate, Vars{
		"Action": action,
		"Error":  query.Has("error"),
		"Logout": query.Has("logout"),
		"Csrf":   csrfVar(req),
	})
}

func (c *Console) index(req Request) Response {
	vars := Vars{
		"Instances": c.registry.List(req.Context()),
		"Csrf":      csrfVar(req),
		"Username":  "",
		"LogoutUrl": "",
	}
	if sc, ok := FromContext(req.Context()); ok {
		vars["Username"] = sc.Token.User().GetUsername()
	}
	if c.policy.Logout != nil {
		vars["LogoutUrl"] = c.policy.Logout.LogoutUrl
	}
	return c.render(indexTemplate, vars)
}

func (c *Console) asset(req Request) Response {
	name := strings.TrimPrefix(path.Clean("/"+req.Params.ByName("filepath")), "/")
	content, err := fs.ReadFile(c.assets, name)
	if err != nil {
		return NewErrorJSONResponse(ObjectNotFoundErr())
	}
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return NewResponse(content, nil, http.StatusOK, Header{Name: ContentTypeHeaderName, Value: contentType})
}

func (c *Console) listInstances(req Request) Response {
	return NewJsonResponse(c.registry.List(req.Context()), http.StatusOK, nil)
}

func (c *Console) registerInstance(req Request) Response {
	var reg Registration
	if err := json.NewDecoder(req.Body).Decode(&reg); err != nil {
		return NewErrorJSONResponse(BadRequestErr("Invalid json schema"))
	}
	instance, err := c.registry.Register(req.Context(), reg)
	if err != nil {
		return NewErrorJSONResponse(err)
	}
	return NewJsonResponse(map[string]string{"id": instance.ID}, http.StatusCreated, nil,
		Header{Name: LocationHeaderName, Value: c.props.Path("/instances/" + instance.ID)})
}

func (c *Console) deregisterInstance(req Request) Response {
	if err := c.registry.Deregister(req.Context(), req.Params.ByName("id")); err != nil {
		return NewErrorJSONResponse(err)
	}
	return NewNoContentResponse()
}

func (c *Console) health(Request) Response {
	return NewResponse([]byte(`{"status":"UP"}`), nil, http.StatusOK, Header{Name: ContentTypeHeaderName, Value: ApplicationJsonHeaderVal})
}
