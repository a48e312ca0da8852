// Package main TripUnite realtime gateway
//
//	@title			TripUnite Realtime Gateway API
//	@version		1.0
//	@description	Websocket gateway for chat, presence and video call signaling
//
//	@host		localhost:3000
//	@BasePath	/
//
//	@securityDefinitions.apikey	CookieAuth
//	@in							cookie
//	@name						tripunitetoken
//	@description				Session JWT set by the user service at login
//
//	@securityDefinitions.apikey	InternalKey
//	@in							header
//	@name						X-Internal-Key
package main
