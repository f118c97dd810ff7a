package client

import (
	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/version"
	"github.com/GriffinCanCode/nuitester/internal/domain/workspace"
)

// Workspace is a workspace summary as the server reports it.
type Workspace struct {
	workspace.Summary
	BridgePath  string `json:"bridge_path"`
	PreviewPath string `json:"preview_path"`
	StreamPath  string `json:"stream_path"`
}

// Health is the /health response.
type Health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Workspaces int    `json:"workspaces"`
	Resources  int    `json:"resources"`
	Shim       struct {
		Checked bool   `json:"checked"`
		OK      bool   `json:"ok"`
		Error   string `json:"error,omitempty"`
	} `json:"shim"`
}

// UploadResult is the response to a folder upload.
type UploadResult struct {
	Uploaded  int       `json:"uploaded"`
	Workspace Workspace `json:"workspace"`
}

// LogPage is one read of a workspace console log.
type LogPage struct {
	Entries []console.Entry `json:"entries"`
	Count   int             `json:"count"`
	LastSeq uint64          `json:"last_seq"`
}

// Version is a snapshot summary.
type Version = version.Summary

type workspaceList struct {
	Workspaces []Workspace `json:"workspaces"`
	Count      int         `json:"count"`
}

type deliveredResponse struct {
	Delivered int `json:"delivered"`
}

type versionList struct {
	Versions []Version `json:"versions"`
	Count    int       `json:"count"`
}
