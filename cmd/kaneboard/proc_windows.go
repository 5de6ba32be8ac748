//go:build windows

package main

import "os/exec"

func configureDaemonProc(cmd *exec.Cmd) {}
