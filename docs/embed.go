package docs

import _ "embed"

//go:embed announcement-api.openapi.yaml
var embeddedAnnouncementOpenAPI []byte

//go:embed swagger.html
var embeddedSwaggerHTML []byte

// AnnouncementOpenAPI is the OpenAPI document of the announcement API.
var AnnouncementOpenAPI = embeddedAnnouncementOpenAPI

// SwaggerHTML renders AnnouncementOpenAPI with Swagger UI.
var SwaggerHTML = embeddedSwaggerHTML
