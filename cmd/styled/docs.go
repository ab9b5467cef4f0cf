package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           styled API
// @version         1.0
// @description     HTTP API for multi-backend image stylization.
//
// @contact.name   styled maintainers
// @contact.url    https://github.com/your-org/styled
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
