// Package extract turns portal page markup into typed results. Every function
// is pure: it receives the HTML of the current page and never touches the
// browser, so the workflow engine only ever sees structured values.
package extract
