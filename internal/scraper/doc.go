// Package scraper reads the ticketing sites that only publish their
// workshops as web pages: Billetweb, the Fresque du Climat platform, the
// Fresque de l'Économie Circulaire, Glide apps, HelloAsso and Eventbrite.
//
// Every site is a siteLayout wrapped by the same Scraper: the layout knows
// the selectors, the Scraper owns the browser session, retries stale pages
// and turns missing elements into rejections. A failure that survives the
// retries abandons the source; the events already read from it are dropped.
package scraper
