package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/mattn/go-tty"

	"github.com/sisoputnfrba/tp-2025-2c-LosCuervosXeneizes/utils"
)

const ctrlC = 0x03

// Consola es la terminal que ven los programas como fd 0 y fd 1. Se abre en
// modo crudo para que cada tecla llegue sin esperar el enter.
type Consola struct {
	tty       *tty.TTY
	restaurar func() error
}

// AbrirConsola abre el dispositivo; "tty" es la terminal que controla al kernel
func AbrirConsola(dispositivo string) (*Consola, error) {
	var t *tty.TTY
	var err error
	if dispositivo == "tty" {
		t, err = tty.Open()
	} else {
		t, err = tty.OpenDevice(dispositivo)
	}
	if err != nil {
		return nil, fmt.Errorf("error abriendo la consola %s: %w", dispositivo, err)
	}
	restaurar, err := t.Raw()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("error pasando la consola a modo crudo: %w", err)
	}
	utils.InfoLog.Info("Consola abierta", "dispositivo", dispositivo)
	return &Consola{tty: t, restaurar: restaurar}, nil
}

// Read entrega las teclas tal cual salvo Ctrl+C, que en modo crudo no genera
// la señal y se reenvía al propio proceso
func (c *Consola) Read(p []byte) (int, error) {
	n, err := c.tty.Input().Read(p)
	if i := bytes.IndexByte(p[:n], ctrlC); i >= 0 {
		syscall.Kill(os.Getpid(), syscall.SIGINT)
		n = i
	}
	return n, err
}

// Write traduce \n a \r\n, en modo crudo la terminal no vuelve el carro
func (c *Consola) Write(p []byte) (int, error) {
	if _, err := c.tty.Output().Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Consola) Close() error {
	if err := c.restaurar(); err != nil {
		c.tty.Close()
		return err
	}
	return c.tty.Close()
}

// entradaDiferida no entrega nada hasta que se cierre listo
type entradaDiferida struct {
	r     io.Reader
	listo <-chan struct{}
}

func (e *entradaDiferida) Read(p []byte) (int, error) {
	<-e.listo
	return e.r.Read(p)
}
