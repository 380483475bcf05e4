// Package template is the seam between form rendering and a template
// engine. Control markup is produced only through Renderer.
package template
