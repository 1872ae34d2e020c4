package static

/*
This file is generated! DO NOT EDIT
*/

var DeployFileModes = map[string]int{
	".dockerignore":         420 /* 0644 */,
	".gcloudignore":         420 /* 0644 */,
	"Dockerfile-tpl":        420 /* 0644 */,
	"app.yaml-tpl":          420 /* 0644 */,
	"project_name.yaml-tpl": 420 /* 0644 */,
	"requirements.txt":      420 /* 0644 */,
}
