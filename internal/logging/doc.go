// Package logging builds the structured logger every component receives.
package logging
