// This file was written by hand in the shape createmock generates. See the
// following page for more information:
//
//     https://github.com/jacobsa/oglemock
//

package mock_backend

import (
	context "context"
	fmt "fmt"
	runtime "runtime"
	unsafe "unsafe"

	backend "github.com/vfsmux/vfsmux/backend"
	oglemock "github.com/jacobsa/oglemock"
)

type MockServer interface {
	backend.Server
	oglemock.MockObject
}

type mockServer struct {
	controller  oglemock.Controller
	description string
}

func NewMockServer(
	c oglemock.Controller,
	desc string) MockServer {
	return &mockServer{
		controller:  c,
		description: desc,
	}
}

func (m *mockServer) Oglemock_Id() uintptr {
	return uintptr(unsafe.Pointer(m))
}

func (m *mockServer) Oglemock_Description() string {
	return m.description
}

func (m *mockServer) Mounted(p0 context.Context, p1 *backend.MountedRequest) (o0 *backend.MountedResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Mounted",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Mounted: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.MountedResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Unmounted(p0 context.Context, p1 *backend.UnmountedRequest) (o0 *backend.UnmountedResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Unmounted",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Unmounted: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.UnmountedResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Lookup(p0 context.Context, p1 *backend.LookupRequest) (o0 *backend.LookupResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Lookup",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Lookup: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.LookupResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Read(p0 context.Context, p1 *backend.ReadRequest) (o0 *backend.ReadResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Read",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Read: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.ReadResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Write(p0 context.Context, p1 *backend.WriteRequest) (o0 *backend.WriteResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Write",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Write: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.WriteResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Truncate(p0 context.Context, p1 *backend.TruncateRequest) (o0 *backend.TruncateResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Truncate",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Truncate: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.TruncateResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Sync(p0 context.Context, p1 *backend.SyncRequest) (o0 *backend.SyncResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Sync",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Sync: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.SyncResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Stat(p0 context.Context, p1 *backend.StatRequest) (o0 *backend.StatResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Stat",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Stat: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.StatResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Statfs(p0 context.Context, p1 *backend.StatfsRequest) (o0 *backend.StatfsResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Statfs",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Statfs: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.StatfsResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Destroy(p0 context.Context, p1 *backend.DestroyRequest) (o0 *backend.DestroyResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Destroy",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Destroy: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.DestroyResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}

func (m *mockServer) Link(p0 context.Context, p1 *backend.LinkRequest) (o0 *backend.LinkResponse, o1 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Link",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 2 {
		panic(fmt.Sprintf("mockServer.Link: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(*backend.LinkResponse)
	}
	if retVals[1] != nil {
		o1 = retVals[1].(error)
	}

	return
}
