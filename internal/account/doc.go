// Package account looks up IPS users by their stored credentials.
//
// Credentials are compared exactly as stored in the users table. The table
// is owned outside this service and is only ever read here.
package account
