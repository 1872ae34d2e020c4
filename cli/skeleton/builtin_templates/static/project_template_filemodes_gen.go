package static

/*
This file is generated! DO NOT EDIT
*/

var ProjectFileModes = map[string]int{
	"manage.py-tpl":            493 /* 0755 */,
	"project_name/__init__.py": 420 /* 0644 */,
	"project_name/urls.py-tpl": 420 /* 0644 */,
	"project_name/wsgi.py-tpl": 420 /* 0644 */,
}
