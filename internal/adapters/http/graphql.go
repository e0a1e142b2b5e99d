package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/fogmap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the session service.
// Fields resolve through the json tags of the domain types.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"center": &graphql.Field{Type: geoPointType},
			"zoom":   &graphql.Field{Type: graphql.Float},
			"width":  &graphql.Field{Type: graphql.Int},
			"height": &graphql.Field{Type: graphql.Int},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
		},
	})

	stateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapViewState",
		Fields: graphql.Fields{
			"has_map":             &graphql.Field{Type: graphql.Boolean},
			"is_tracking_user":    &graphql.Field{Type: graphql.Boolean},
			"is_click_to_move":    &graphql.Field{Type: graphql.Boolean},
			"last_accepted_point": &graphql.Field{Type: geoPointType},
			"now_coordinates":     &graphql.Field{Type: geoPointType},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":              &graphql.Field{Type: graphql.String},
			"created_at":      &graphql.Field{Type: graphql.DateTime},
			"updated_at":      &graphql.Field{Type: graphql.DateTime},
			"state":           &graphql.Field{Type: stateType},
			"view":            &graphql.Field{Type: viewType},
			"interactive":     &graphql.Field{Type: graphql.Boolean},
			"circles":         &graphql.Field{Type: graphql.Int},
			"quads":           &graphql.Field{Type: graphql.Int},
			"revision":        &graphql.Field{Type: graphql.Int},
			"trail_meters":    &graphql.Field{Type: graphql.Float},
			"revealed_bounds": &graphql.Field{Type: boundsType},
		},
	})

	shapeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RevealShape",
		Fields: graphql.Fields{
			"kind":     &graphql.Field{Type: graphql.String},
			"center":   &graphql.Field{Type: geoPointType},
			"radius":   &graphql.Field{Type: graphql.Float},
			"ref_zoom": &graphql.Field{Type: graphql.Float},
			"from":     &graphql.Field{Type: geoPointType},
			"to":       &graphql.Field{Type: geoPointType},
		},
	})

	ingestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "IngestResult",
		Fields: graphql.Fields{
			"accepted":      &graphql.Field{Type: graphql.Boolean},
			"quad_appended": &graphql.Field{Type: graphql.Boolean},
			"filtered":      &graphql.Field{Type: graphql.Boolean},
			"recentered":    &graphql.Field{Type: graphql.Boolean},
			"circles":       &graphql.Field{Type: graphql.Int},
			"quads":         &graphql.Field{Type: graphql.Int},
			"revision":      &graphql.Field{Type: graphql.Int},
		},
	})

	idArg := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "List open fog sessions",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sessions, _ := deps.Sessions.List(p.Context, p.Args["offset"].(int), p.Args["limit"].(int))
					return sessions, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a session by ID",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Get(p.Context, p.Args["id"].(string))
				},
			},
			"shapes": &graphql.Field{
				Type:        graphql.NewList(shapeType),
				Description: "Revealed shapes of a session in insertion order",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Shapes(p.Context, p.Args["id"].(string))
				},
			},
			"trail": &graphql.Field{
				Type:        graphql.NewList(graphql.NewList(geoPointType)),
				Description: "Walked path of a session, one list per segment",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.Trail(p.Context, p.Args["id"].(string))
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"createSession": &graphql.Field{
				Type:        sessionType,
				Description: "Open a session, optionally with an initial view",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.Float},
					"lon":    &graphql.ArgumentConfig{Type: graphql.Float},
					"zoom":   &graphql.ArgumentConfig{Type: graphql.Float},
					"width":  &graphql.ArgumentConfig{Type: graphql.Int},
					"height": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if len(p.Args) == 0 {
						return deps.Sessions.Create(p.Context, nil)
					}
					v := deps.Sessions.DefaultView()
					if lat, ok := p.Args["lat"].(float64); ok {
						v.Center.Lat = lat
					}
					if lon, ok := p.Args["lon"].(float64); ok {
						v.Center.Lon = lon
					}
					if zoom, ok := p.Args["zoom"].(float64); ok {
						v.Zoom = zoom
					}
					if w, ok := p.Args["width"].(int); ok {
						v.Width = w
					}
					if h, ok := p.Args["height"].(int); ok {
						v.Height = h
					}
					return deps.Sessions.Create(p.Context, &v)
				},
			},
			"ingestSample": &graphql.Field{
				Type:        ingestType,
				Description: "Feed one geolocation sample",
				Args: graphql.FieldConfigArgument{
					"id":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Sessions.IngestSample(p.Context, p.Args["id"].(string), domain.Sample{
						Point:  domain.GeoPoint{Lat: p.Args["lat"].(float64), Lon: p.Args["lon"].(float64)},
						Source: domain.SourceGPS,
						Time:   time.Now(),
					})
				},
			},
			"setMode": &graphql.Field{
				Type:        sessionType,
				Description: "Toggle tracking and click-to-move",
				Args: graphql.FieldConfigArgument{
					"id":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"tracking":    &graphql.ArgumentConfig{Type: graphql.Boolean},
					"clickToMove": &graphql.ArgumentConfig{Type: graphql.Boolean},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var upd domain.ModeUpdate
					if v, ok := p.Args["tracking"].(bool); ok {
						upd.Tracking = &v
					}
					if v, ok := p.Args["clickToMove"].(bool); ok {
						upd.ClickToMove = &v
					}
					return deps.Sessions.SetMode(p.Context, p.Args["id"].(string), upd)
				},
			},
			"resetTrail": &graphql.Field{
				Type:        graphql.Boolean,
				Description: "Clear the revealed area and the path",
				Args:        idArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if err := deps.Sessions.ResetTrail(p.Context, p.Args["id"].(string)); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
