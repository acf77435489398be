package handler

import (
	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/storage"
	"chatrelay/internal/app/store"
	"chatrelay/internal/configs"
)

// AppDeps bundles the collaborators the HTTP layer needs.
type AppDeps struct {
	Hub            *chat.Hub
	Gateway        *chat.Gateway
	Config         *configs.AppConfig
	StorageService storage.StorageService
	Store          store.Store
}
