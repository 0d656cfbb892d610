package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

type object = map[string]interface{}

func queryParam(name, description, typ string, def interface{}) object {
	schema := object{"type": typ}
	if def != nil {
		schema["default"] = def
	}
	return object{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    false,
		"schema":      schema,
	}
}

func ref(name string) object {
	return object{"$ref": "#/components/schemas/" + name}
}

func jsonResponse(description string, schema object) object {
	return object{
		"description": description,
		"content": object{
			"application/json": object{"schema": schema},
		},
	}
}

func errorResponses(codes ...int) object {
	responses := object{}
	for _, code := range codes {
		responses[strconv.Itoa(code)] = jsonResponse(http.StatusText(code), ref("ErrorResponse"))
	}
	return responses
}

func withResponses(base object, extra object) object {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func arrayOf(schema object) object {
	return object{"type": "array", "items": schema}
}

var openAPIDocument = object{
	"openapi": "3.0.0",
	"info": object{
		"title":       "Weather Monitor API",
		"description": "Periodic weather ingestion with dashboard summaries, threshold alerts and retention cleanup",
		"version":     "1.0.0",
	},
	"servers": []object{
		{"url": "http://localhost:8000", "description": "Local development server"},
	},
	"paths": object{
		"/api/weather/current": object{
			"get": object{
				"summary":    "Latest readings",
				"parameters": []object{queryParam("limit", "Readings to return (max 100)", "integer", 10)},
				"responses": withResponses(object{
					"200": jsonResponse("Newest readings first", arrayOf(ref("WeatherReading"))),
				}, errorResponses(400, 404, 500)),
			},
		},
		"/api/weather/dashboard": object{
			"get": object{
				"summary": "Current dashboard summary",
				"responses": withResponses(object{
					"200": jsonResponse("Most recently computed summary", ref("DashboardSummary")),
				}, errorResponses(404, 500)),
			},
		},
		"/api/weather/alerts": object{
			"get": object{
				"summary":    "Recent alerts",
				"parameters": []object{queryParam("limit", "Alerts to return", "integer", 50)},
				"responses": withResponses(object{
					"200": jsonResponse("Newest alerts first", arrayOf(ref("WeatherAlert"))),
				}, errorResponses(400, 500)),
			},
		},
		"/api/weather/fetch-now": object{
			"post": object{
				"summary":    "Fetch and store the current weather",
				"parameters": []object{queryParam("city", "City to fetch; defaults to the first configured city", "string", nil)},
				"responses": withResponses(object{
					"200": jsonResponse("Stored reading", object{
						"type": "object",
						"properties": object{
							"message": object{"type": "string"},
							"data":    ref("WeatherReading"),
						},
					}),
				}, errorResponses(400, 500)),
			},
		},
		"/api/weather/readings": object{
			"get": object{
				"summary": "List readings",
				"parameters": []object{
					queryParam("location", "Filter by location name", "string", nil),
					queryParam("since", "Fetched at or after (RFC3339 or YYYY-MM-DD)", "string", nil),
					queryParam("until", "Fetched at or before (RFC3339 or YYYY-MM-DD)", "string", nil),
					queryParam("include_deleted", "Include soft-deleted readings", "boolean", false),
					queryParam("page", "Page number", "integer", 1),
					queryParam("limit", "Readings per page (max 1000)", "integer", 100),
				},
				"responses": withResponses(object{
					"200": jsonResponse("One page of readings", object{
						"type": "object",
						"properties": object{
							"data":        arrayOf(ref("WeatherReading")),
							"total":       object{"type": "integer"},
							"page":        object{"type": "integer"},
							"limit":       object{"type": "integer"},
							"total_pages": object{"type": "integer"},
						},
					}),
				}, errorResponses(400, 500)),
			},
		},
		"/api/jobs": object{
			"get": object{
				"summary": "Scheduler job status",
				"responses": object{
					"200": jsonResponse("Registered jobs", arrayOf(ref("JobStatus"))),
				},
			},
		},
		"/health": object{
			"get": object{
				"summary": "Health check",
				"responses": object{
					"200": jsonResponse("Service and database are healthy", object{"type": "object"}),
					"503": jsonResponse("Database unreachable", object{"type": "object"}),
				},
			},
		},
		"/metrics": object{
			"get": object{
				"summary": "Prometheus metrics",
				"responses": object{
					"200": object{
						"description": "Prometheus metrics in text format",
						"content":     object{"text/plain": object{"schema": object{"type": "string"}}},
					},
				},
			},
		},
	},
	"components": object{
		"schemas": object{
			"ErrorResponse": object{
				"type": "object",
				"properties": object{
					"error":   object{"type": "string"},
					"message": object{"type": "string"},
					"code":    object{"type": "integer"},
				},
			},
			"WeatherReading": object{
				"type": "object",
				"properties": object{
					"id":                    object{"type": "integer"},
					"fetched_at":            object{"type": "string", "format": "date-time"},
					"location_name":         object{"type": "string"},
					"country":               object{"type": "string"},
					"temperature":           object{"type": "number"},
					"feels_like":            object{"type": "number"},
					"humidity":              object{"type": "integer"},
					"pressure":              object{"type": "integer"},
					"wind_speed":            object{"type": "number"},
					"clouds":                object{"type": "integer"},
					"condition_label":       object{"type": "string"},
					"condition_description": object{"type": "string"},
					"deleted_at":            object{"type": "string", "format": "date-time", "nullable": true},
				},
			},
			"DashboardSummary": object{
				"type": "object",
				"properties": object{
					"id":                  object{"type": "integer"},
					"computed_at":         object{"type": "string", "format": "date-time"},
					"window_start":        object{"type": "string", "format": "date-time"},
					"window_end":          object{"type": "string", "format": "date-time"},
					"reading_count":       object{"type": "integer"},
					"location_count":      object{"type": "integer"},
					"min_temperature":     object{"type": "number"},
					"max_temperature":     object{"type": "number"},
					"avg_temperature":     object{"type": "number"},
					"min_humidity":        object{"type": "number"},
					"max_humidity":        object{"type": "number"},
					"avg_humidity":        object{"type": "number"},
					"condition_frequency": object{"type": "object", "additionalProperties": object{"type": "integer"}},
					"hourly_trend": arrayOf(object{
						"type": "object",
						"properties": object{
							"hour":            object{"type": "string", "format": "date-time"},
							"avg_temperature": object{"type": "number"},
							"avg_humidity":    object{"type": "number"},
							"readings":        object{"type": "integer"},
						},
					}),
				},
			},
			"WeatherAlert": object{
				"type": "object",
				"properties": object{
					"id":            object{"type": "integer"},
					"created_at":    object{"type": "string", "format": "date-time"},
					"reading_id":    object{"type": "integer", "nullable": true},
					"location_name": object{"type": "string"},
					"alert_type":    object{"type": "string", "enum": []string{"high_temperature", "high_humidity", "extreme_weather"}},
					"severity":      object{"type": "string", "enum": []string{"low", "medium", "high"}},
					"message":       object{"type": "string"},
				},
			},
			"JobStatus": object{
				"type": "object",
				"properties": object{
					"name":          object{"type": "string"},
					"schedule":      object{"type": "string"},
					"running":       object{"type": "boolean"},
					"next_run":      object{"type": "string", "format": "date-time"},
					"last_run":      object{"type": "string", "format": "date-time"},
					"last_duration": object{"type": "string"},
					"last_status":   object{"type": "string"},
					"last_error":    object{"type": "string"},
					"runs":          object{"type": "integer"},
					"failures":      object{"type": "integer"},
					"skipped":       object{"type": "integer"},
				},
			},
		},
	},
}

// OpenAPISpec returns the OpenAPI 3.0 document for the Weather Monitor API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openAPIDocument)
}
