package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	anchorRecordType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AnchorRecord",
		Fields: graphql.Fields{
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
			"altitude":  &graphql.Field{Type: graphql.Float},
			"qx":        &graphql.Field{Type: graphql.Float},
			"qy":        &graphql.Field{Type: graphql.Float},
			"qz":        &graphql.Field{Type: graphql.Float},
			"qw":        &graphql.Field{Type: graphql.Float},
		},
	})

	anchorStatusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AnchorStatus",
		Fields: graphql.Fields{
			"slot":       &graphql.Field{Type: graphql.Int},
			"record":     &graphql.Field{Type: anchorRecordType},
			"near":       &graphql.Field{Type: graphql.Boolean},
			"distance_m": &graphql.Field{Type: graphql.Float},
		},
	})

	storedAnchorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StoredAnchor",
		Fields: graphql.Fields{
			"session_id": &graphql.Field{Type: graphql.String},
			"slot":       &graphql.Field{Type: graphql.Int},
			"record":     &graphql.Field{Type: anchorRecordType},
			"distance_m": &graphql.Field{Type: graphql.Float},
			"updated_at": &graphql.Field{Type: graphql.String},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"created_at":   &graphql.Field{Type: graphql.String},
			"last_seen_at": &graphql.Field{Type: graphql.String},
			"anchors": &graphql.Field{
				Type: graphql.NewList(anchorStatusType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					sess, ok := p.Source.(map[string]interface{})
					if !ok {
						return nil, nil
					}
					id := sess["id"].(string)
					return deps.Sessions.Anchors(p.Context, id)
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"anchors": &graphql.Field{
				Type:        graphql.NewList(anchorStatusType),
				Description: "Slot inventory of a live session",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["session_id"].(string)
					return deps.Sessions.Anchors(p.Context, id)
				},
			},
			"anchorsNearby": &graphql.Field{
				Type:        graphql.NewList(storedAnchorType),
				Description: "Stored anchors near a location, across all sessions",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 100.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Anchors == nil {
						return nil, nil
					}
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Anchors.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a live session by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					state, err := deps.Sessions.Get(id)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"id":           state.Session.ID,
						"created_at":   state.Session.CreatedAt.Format(time.RFC3339),
						"last_seen_at": state.Session.LastSeenAt.Format(time.RFC3339),
					}, nil
				},
			},
			"sessionAnchors": &graphql.Field{
				Type:        graphql.NewList(storedAnchorType),
				Description: "Stored anchor records for a session, live or not",
				Args: graphql.FieldConfigArgument{
					"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Anchors == nil {
						return nil, nil
					}
					id := p.Args["session_id"].(string)
					return deps.Anchors.ListBySession(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
