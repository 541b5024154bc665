package rootmgr

// Command templates and well-known paths for device operations.
const (
	cmdInstall          = "pm install -r "
	cmdInstallExternal  = " -s"
	cmdInstallInternal  = " -f"
	cmdUninstall        = "pm uninstall "
	cmdScreenCap        = "/system/bin/screencap -p "
	cmdListProcesses    = "ps"
	cmdPidOf            = "pidof "
	cmdKill             = "kill "

	pathSystem    = "/system"
	pathSystemBin = "/system/bin/"

	// zygote is the parent of every app process; killing it restarts the
	// device's runtime.
	zygoteProcess = "zygote"
)

// Install locations accepted by InstallPackage.
const (
	LocationAuto     = "auto"
	LocationExternal = "ex"
	LocationInternal = "in"
)
