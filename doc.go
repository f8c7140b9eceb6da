// Package fango assembles a JSON API server out of gorm models.
//
// Overview
//
// An App owns the chi router, the middleware chain and the authentication
// backend. Viewsets are registered on one of its two router groups:
//
//   - Public() for endpoints that accept anonymous requests,
//   - Private() for endpoints that require a valid bearer token.
//
// Both groups live under "/api". Foreign http.Handlers can be mounted next
// to them with Mount, and run behind a concurrency throttle.
//
// Quick start
//
//	settings, err := config.Load()
//	db, err := fango.OpenDB(settings)
//	app, err := fango.New(settings, db)
//
//	books := &viewset.ViewSet[Book, BookSchema]{Basename: "books"}
//	err = books.Register(app.Private(), app.ViewSetOptions())
//
//	err = app.Run(ctx)
//
// Settings
//
// Settings are read by config.Load from the file named in
// FANGO_SETTINGS_MODULE and from the environment. See config.Settings for
// the recognised keys.
package fango
