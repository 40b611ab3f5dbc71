// Package booking is a small sample domain showing how to build an aggregate
// on top of the aggregate and repository packages: a Booking records at most
// one purchase order per stream.
package booking
