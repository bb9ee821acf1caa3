// Package driver defines the page capabilities the workflow engine consumes
// and implements them on top of a Playwright controlled Chromium session.
package driver
